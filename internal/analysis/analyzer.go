package analysis

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/nidhogg/giffly/internal/metrics"
	"github.com/nidhogg/giffly/internal/provider"
	"github.com/nidhogg/giffly/internal/retry"
)

// Chatter sends a chat request to an LLM. provider.Router satisfies it.
type Chatter interface {
	Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// credentialRefresher is optionally implemented by a Chatter whose tokens
// expire.
type credentialRefresher interface {
	RefreshCredentials(ctx context.Context) error
}

// Config tunes the analyzer.
type Config struct {
	Model string
	// Timeout bounds one Analyze call, retries included.
	Timeout time.Duration
	Retry   retry.Policy
	// BreakerFailures consecutive failures open the breaker for
	// BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		Retry:           retry.DefaultPolicy(),
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

const breakerName = "ai-analysis"

// Analyzer turns a free-text query into an Analysis.
type Analyzer struct {
	chat   Chatter
	cfg    Config
	cb     *gobreaker.CircuitBreaker[*Analysis]
	logger *zap.Logger
}

// NewAnalyzer wraps chat with retry, a circuit breaker and a timeout.
func NewAnalyzer(chat Chatter, cfg Config, logger *zap.Logger) *Analyzer {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}

	a := &Analyzer{chat: chat, cfg: cfg, logger: logger}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	a.cb = gobreaker.NewCircuitBreaker[*Analysis](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A garbled reply or a caller hanging up says nothing about the
		// endpoint's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMalformed) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state transition",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.RecordBreakerTransition(name, from.String(), to.String(), stateToFloat(to))
		},
	})
	return a
}

// Analyze returns the model's reading of query, or nil when the model is
// unavailable, slow, or answers with something unusable. A nil Analyzer
// always returns nil.
func (a *Analyzer) Analyze(ctx context.Context, query string) *Analysis {
	if a == nil || a.chat == nil {
		return nil
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	result, err := a.cb.Execute(func() (*Analysis, error) {
		return retry.Do(ctx, a.policy(), provider.Classify, func(ctx context.Context) (*Analysis, error) {
			resp, err := a.chat.Chat(ctx, buildRequest(a.cfg.Model, query))
			if err != nil {
				return nil, err
			}
			return Parse(resp.Content)
		})
	})

	elapsed := time.Since(start)
	switch {
	case err == nil && result.IsEmpty():
		metrics.RecordAnalysis("empty", elapsed)
		return nil
	case err == nil:
		metrics.RecordAnalysis("success", elapsed)
		a.logger.Debug("query analyzed",
			zap.String("theme", result.Theme),
			zap.String("type", result.Type),
			zap.Duration("elapsed", elapsed))
		return result
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordAnalysis("rejected", elapsed)
		a.logger.Debug("analysis skipped, circuit open")
	case errors.Is(err, ErrMalformed):
		metrics.RecordAnalysis("malformed", elapsed)
		a.logger.Warn("analysis reply malformed", zap.Error(err))
	default:
		metrics.RecordAnalysis("failure", elapsed)
		a.logger.Warn("analysis unavailable", zap.Error(err), zap.Duration("elapsed", elapsed))
	}
	return nil
}

// State reports the breaker state, for health output.
func (a *Analyzer) State() string {
	if a == nil {
		return "disabled"
	}
	return a.cb.State().String()
}

func (a *Analyzer) policy() retry.Policy {
	p := a.cfg.Retry
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		class := provider.Classify(err)
		metrics.RecordAnalysisRetry(class.String())
		a.logger.Debug("retrying analysis",
			zap.Int("attempt", attempt),
			zap.String("class", class.String()),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	if r, ok := a.chat.(credentialRefresher); ok {
		refresh := a.cfg.Retry
		refresh.Reauth = nil
		p.Reauth = func(ctx context.Context) error {
			_, err := retry.Do(ctx, refresh, provider.Classify, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, r.RefreshCredentials(ctx)
			})
			return err
		}
	}
	return p
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
