// Package router turns chat messages into recommendation requests and sends
// the formatted reply back through the gateway.
package router

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/nidhogg/giffly/internal/catalog"
	"github.com/nidhogg/giffly/internal/gateway"
	"github.com/nidhogg/giffly/internal/metrics"
	"github.com/nidhogg/giffly/internal/recommend"
	"go.uber.org/zap"
)

const (
	recentCount    = 5
	defaultTimeout = 30 * time.Second

	msgHelp = "Опишите, кому и по какому поводу нужен букет, например: «нежный букет на свадьбу до 5000 рублей».\n" +
		"/new покажет новинки каталога."
	msgRecentTitle = "Новинки каталога:"
	msgRecentEmpty = "Каталог пока пуст."
	msgRecentError = "Не удалось загрузить новинки. Попробуйте позже."
)

// Recommender is the part of the recommendation service the router needs.
type Recommender interface {
	GetRecommendations(ctx context.Context, query string) *recommend.Result
	Recent(ctx context.Context, n int) ([]catalog.Product, error)
}

// Sender delivers replies to a platform channel.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// mentionRe matches Slack (<@U123>) and Discord (<@123>, <@!123>) user mentions.
var mentionRe = regexp.MustCompile(`<@!?[A-Za-z0-9]+>`)

// MessageRouter routes inbound chat messages to the recommender.
type MessageRouter struct {
	svc     Recommender
	gw      Sender
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a new MessageRouter.
func New(svc Recommender, gw Sender, logger *zap.Logger) *MessageRouter {
	return &MessageRouter{
		svc:     svc,
		gw:      gw,
		timeout: defaultTimeout,
		logger:  logger,
	}
}

// Handle answers one inbound message. Its signature matches
// gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), mr.timeout)
	defer cancel()

	metrics.RecordGatewayMessage(msg.Platform)
	content := strings.TrimSpace(mentionRe.ReplaceAllString(msg.Content, ""))
	if content == "" {
		return
	}
	mr.logger.Info("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
	)

	if strings.HasPrefix(content, "/") {
		mr.handleCommand(ctx, msg, content)
		return
	}

	res := mr.svc.GetRecommendations(ctx, content)
	mr.sendReply(ctx, msg, FormatResult(res), res)
}

func (mr *MessageRouter) handleCommand(ctx context.Context, msg *gateway.InboundMessage, content string) {
	name := strings.ToLower(strings.Fields(content)[0])
	switch name {
	case "/new", "/новинки":
		products, err := mr.svc.Recent(ctx, recentCount)
		switch {
		case err != nil:
			mr.logger.Error("load recent products failed", zap.Error(err))
			mr.sendReply(ctx, msg, msgRecentError, nil)
		case len(products) == 0:
			mr.sendReply(ctx, msg, msgRecentEmpty, products)
		default:
			mr.sendReply(ctx, msg, FormatProducts(msgRecentTitle, products), products)
		}
	default:
		mr.sendReply(ctx, msg, msgHelp, nil)
	}
}

// sendReply sends a reply back to the originating platform channel.
func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, text string, data any) {
	err := mr.gw.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
		Data:      data,
	})
	if err != nil {
		mr.logger.Error("send reply failed",
			zap.String("platform", orig.Platform), zap.Error(err))
	}
}
