package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type captureAdapter struct {
	platform  string
	handler   MessageHandler
	sent      []*OutboundMessage
	broadcast []*BroadcastMessage
	failCast  bool
	mu        sync.Mutex
}

func (c *captureAdapter) Platform() string              { return c.platform }
func (c *captureAdapter) Connect(context.Context) error { return nil }
func (c *captureAdapter) OnMessage(h MessageHandler)    { c.handler = h }
func (c *captureAdapter) Close() error                  { return nil }
func (c *captureAdapter) Status() AdapterStatus {
	return AdapterStatus{Platform: c.platform, Connected: true}
}
func (c *captureAdapter) inject(msg *InboundMessage) { c.handler(msg) }
func (c *captureAdapter) Send(_ context.Context, m *OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return nil
}
func (c *captureAdapter) Broadcast(_ context.Context, m *BroadcastMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCast {
		return errors.New("offline")
	}
	c.broadcast = append(c.broadcast, m)
	return nil
}

func TestGatewayRoutesInbound(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	var got *InboundMessage
	gw.SetHandler(func(m *InboundMessage) { got = m })

	a := &captureAdapter{platform: "test"}
	gw.Register(a)
	a.inject(&InboundMessage{Platform: "test", Content: "розы"})

	if got == nil || got.Content != "розы" {
		t.Fatalf("handler got %+v", got)
	}
}

func TestGatewaySend(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	a := &captureAdapter{platform: "test"}
	gw.Register(a)

	if err := gw.Send(context.Background(), &OutboundMessage{Platform: "test", Content: "ok"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(a.sent) != 1 {
		t.Fatalf("sent = %d", len(a.sent))
	}
	if err := gw.Send(context.Background(), &OutboundMessage{Platform: "fax"}); err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestBroadcasterTargetsAndHistory(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	a := &captureAdapter{platform: "a"}
	b := &captureAdapter{platform: "b"}
	gw.Register(a)
	gw.Register(b)
	bc := NewBroadcaster(gw, zap.NewNop())

	ctx := context.Background()
	if err := bc.Send(ctx, &BroadcastMessage{Type: BroadcastNewArrivals, Title: "Новинки", Platforms: []string{"b"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(a.broadcast) != 0 || len(b.broadcast) != 1 {
		t.Errorf("a=%d b=%d", len(a.broadcast), len(b.broadcast))
	}
	if err := bc.Send(ctx, &BroadcastMessage{Type: BroadcastAnnouncement, Title: "all"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	hist := bc.History(0)
	if len(hist) != 2 {
		t.Fatalf("history = %d", len(hist))
	}
	if got := hist[1].Targets; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("targets = %v", got)
	}
	if last := bc.History(1); len(last) != 1 || last[0].Message.Title != "all" {
		t.Errorf("History(1) = %+v", last)
	}

	if err := bc.Send(ctx, &BroadcastMessage{Title: "untyped"}); err == nil {
		t.Error("expected error for missing type")
	}
}

func TestBroadcastFailure(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	gw.Register(&captureAdapter{platform: "a", failCast: true})
	bc := NewBroadcaster(gw, zap.NewNop())

	if err := bc.Send(context.Background(), &BroadcastMessage{Type: BroadcastAnnouncement}); err == nil {
		t.Fatal("expected error")
	}
	if len(bc.History(0)) != 0 {
		t.Error("failed broadcast should not be recorded")
	}
}

func TestStatusAll(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	gw.Register(&captureAdapter{platform: "z"})
	gw.Register(NewRESTAdapter(zap.NewNop()))

	st := gw.StatusAll()
	if len(st) != 2 || st[0].Platform != "rest" || st[1].Platform != "z" {
		t.Errorf("StatusAll = %+v", st)
	}
}

func TestRESTAdapterRoundTrip(t *testing.T) {
	rest := NewRESTAdapter(zap.NewNop())
	gw := NewGateway(zap.NewNop())
	gw.SetHandler(func(m *InboundMessage) {
		gw.Send(context.Background(), &OutboundMessage{
			Platform:  m.Platform,
			ChannelID: m.ChannelID,
			Content:   "echo: " + m.Content,
		})
	})
	gw.Register(rest)

	ts := httptest.NewServer(rest.Routes())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"user_id": "u1", "content": "тюльпаны"})
	resp, err := http.Post(ts.URL+"/message", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out OutboundMessage
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Content != "echo: тюльпаны" || out.Platform != "rest" {
		t.Errorf("reply = %+v", out)
	}
}

func TestRESTAdapterValidation(t *testing.T) {
	rest := NewRESTAdapter(zap.NewNop())
	ts := httptest.NewServer(rest.Routes())
	defer ts.Close()

	for _, body := range []string{`{`, `{"content":""}`} {
		resp, err := http.Post(ts.URL+"/message", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestRESTAdapterTimeout(t *testing.T) {
	rest := NewRESTAdapter(zap.NewNop())
	rest.SetReplyTimeout(20 * time.Millisecond)
	rest.OnMessage(func(*InboundMessage) {})
	ts := httptest.NewServer(rest.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/message", "application/json", strings.NewReader(`{"content":"x"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", resp.StatusCode)
	}
}

func TestRESTSendUnknownChannel(t *testing.T) {
	rest := NewRESTAdapter(zap.NewNop())
	if err := rest.Send(context.Background(), &OutboundMessage{ChannelID: "gone"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{"short", "привет", 10, []string{"привет"}},
		{"lines", "ab\ncd\nef", 6, []string{"ab\ncd\n", "ef"}},
		{"long line", "абвгдеж", 3, []string{"абв", "где", "ж"}},
		{"empty", "", 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitMessage(tt.in, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("splitMessage = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("part %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
