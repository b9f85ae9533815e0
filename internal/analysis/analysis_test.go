package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nidhogg/giffly/internal/provider"
	"github.com/nidhogg/giffly/internal/retry"
	"go.uber.org/zap"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		theme  string
		colors []string
		budget string
		kws    int
	}{
		{
			name:   "plain object",
			reply:  `{"theme":"свадьба","type":"букет","colors":["белый","розовый"],"budget":null,"keywords":["пионы"]}`,
			theme:  "свадьба",
			colors: []string{"белый", "розовый"},
			kws:    1,
		},
		{
			name:   "code fence and prose",
			reply:  "Вот анализ:\n```json\n{\"theme\": \"юбилей\", \"budget\": 3000}\n```\nГотово.",
			theme:  "юбилей",
			budget: "3000",
		},
		{
			name:   "string instead of list",
			reply:  `{"colors":"белый, красный","keywords":"розы"}`,
			colors: []string{"белый", "красный"},
			kws:    1,
		},
		{
			name:  "braces inside strings",
			reply: `{"theme":"день {рождения}","special_requests":["без } лилий"]}`,
			theme: "день {рождения}",
		},
		{
			name:   "budget as string",
			reply:  `{"budget":"до 5000 рублей"}`,
			budget: "до 5000 рублей",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.reply)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if a.Theme != tt.theme {
				t.Errorf("theme = %q, want %q", a.Theme, tt.theme)
			}
			if tt.colors != nil {
				if len(a.Colors) != len(tt.colors) {
					t.Fatalf("colors = %v, want %v", a.Colors, tt.colors)
				}
				for i := range tt.colors {
					if a.Colors[i] != tt.colors[i] {
						t.Errorf("colors[%d] = %q, want %q", i, a.Colors[i], tt.colors[i])
					}
				}
			}
			switch {
			case tt.budget == "" && a.Budget != nil:
				t.Errorf("budget = %q, want nil", *a.Budget)
			case tt.budget != "" && (a.Budget == nil || *a.Budget != tt.budget):
				t.Errorf("budget = %v, want %q", a.Budget, tt.budget)
			}
			if len(a.Keywords) != tt.kws {
				t.Errorf("keywords = %v, want %d", a.Keywords, tt.kws)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, reply := range []string{"", "no json here", `{"theme": "свадьба"`, `{theme: x}`} {
		if _, err := Parse(reply); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) err = %v, want ErrMalformed", reply, err)
		}
	}
}

func TestIsEmpty(t *testing.T) {
	var nilAnalysis *Analysis
	blank := " "
	if !nilAnalysis.IsEmpty() || !(&Analysis{Budget: &blank}).IsEmpty() {
		t.Error("expected empty")
	}
	if (&Analysis{Colors: []string{"белый"}}).IsEmpty() {
		t.Error("expected non-empty")
	}
}

type fakeChatter struct {
	calls     atomic.Int32
	refreshed atomic.Int32
	reply     func(n int32) (string, error)
}

func (f *fakeChatter) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	n := f.calls.Add(1)
	content, err := f.reply(n)
	if err != nil {
		return nil, err
	}
	return &provider.ChatResponse{Content: content}, nil
}

func (f *fakeChatter) RefreshCredentials(context.Context) error {
	f.refreshed.Add(1)
	return nil
}

func testConfig() Config {
	return Config{
		Timeout:         time.Second,
		Retry:           retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond},
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	fc := &fakeChatter{reply: func(int32) (string, error) {
		return `{"theme":"свадьба","type":"букет"}`, nil
	}}
	a := NewAnalyzer(fc, testConfig(), zap.NewNop())
	got := a.Analyze(context.Background(), "букет на свадьбу")
	if got == nil || got.Theme != "свадьба" {
		t.Fatalf("Analyze = %+v", got)
	}
}

func TestAnalyzeRetriesTransientErrors(t *testing.T) {
	fc := &fakeChatter{reply: func(n int32) (string, error) {
		if n < 3 {
			return "", &provider.StatusError{Code: http.StatusServiceUnavailable}
		}
		return `{"type":"букет"}`, nil
	}}
	a := NewAnalyzer(fc, testConfig(), zap.NewNop())
	if got := a.Analyze(context.Background(), "букет"); got == nil || got.Type != "букет" {
		t.Fatalf("Analyze = %+v", got)
	}
	if fc.calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", fc.calls.Load())
	}
}

func TestAnalyzeRefreshesCredentials(t *testing.T) {
	fc := &fakeChatter{}
	fc.reply = func(int32) (string, error) {
		if fc.refreshed.Load() == 0 {
			return "", &provider.StatusError{Code: http.StatusUnauthorized}
		}
		return `{"theme":"юбилей"}`, nil
	}
	a := NewAnalyzer(fc, testConfig(), zap.NewNop())
	if got := a.Analyze(context.Background(), "юбилей"); got == nil {
		t.Fatal("expected analysis after refresh")
	}
	if fc.refreshed.Load() != 1 {
		t.Errorf("refreshed = %d, want 1", fc.refreshed.Load())
	}
}

func TestAnalyzeMalformedIsNotRetried(t *testing.T) {
	fc := &fakeChatter{reply: func(int32) (string, error) { return "не знаю", nil }}
	a := NewAnalyzer(fc, testConfig(), zap.NewNop())
	if got := a.Analyze(context.Background(), "что-то"); got != nil {
		t.Fatalf("Analyze = %+v, want nil", got)
	}
	if fc.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", fc.calls.Load())
	}
}

func TestAnalyzeTimesOut(t *testing.T) {
	// The handler outlives every client timeout; release it before Close.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	router := provider.NewRouter(zap.NewNop())
	router.Register(provider.NewOpenAIProvider(provider.ProviderConfig{
		ID: "slow", Endpoint: srv.URL, Credentials: provider.StaticKey("k"),
	}, zap.NewNop()))

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	a := NewAnalyzer(router, cfg, zap.NewNop())

	start := time.Now()
	if got := a.Analyze(context.Background(), "букет"); got != nil {
		t.Fatalf("Analyze = %+v, want nil", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Analyze took %v, want bounded by timeout", elapsed)
	}
}

func TestAnalyzeBreakerOpens(t *testing.T) {
	fc := &fakeChatter{reply: func(int32) (string, error) {
		return "", &provider.StatusError{Code: http.StatusBadRequest}
	}}
	a := NewAnalyzer(fc, testConfig(), zap.NewNop())
	for i := 0; i < 4; i++ {
		if got := a.Analyze(context.Background(), "букет"); got != nil {
			t.Fatalf("Analyze = %+v, want nil", got)
		}
	}
	if fc.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 before the breaker opened", fc.calls.Load())
	}
	if a.State() != "open" {
		t.Errorf("state = %q, want open", a.State())
	}
}

func TestNilAnalyzer(t *testing.T) {
	var a *Analyzer
	if a.Analyze(context.Background(), "x") != nil {
		t.Error("nil analyzer should return nil")
	}
	if a.State() != "disabled" {
		t.Errorf("state = %q", a.State())
	}
}
