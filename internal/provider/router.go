package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNoProvider is returned when the router has nothing registered.
var ErrNoProvider = errors.New("no provider available")

// Router sends chat requests to a default provider and walks a fallback
// chain when it fails.
type Router struct {
	providers map[string]Provider
	fallbacks []string
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider. The first registered provider becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// SetFallbacks configures the providers tried after the default fails.
func (r *Router) SetFallbacks(providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append([]string(nil), providerIDs...)
}

// Len reports how many providers are registered.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Chat sends req to the default provider, then to each fallback in order.
// The returned error wraps the last provider failure.
func (r *Router) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary, ok := r.providers[r.defaults]
	if !ok {
		return nil, ErrNoProvider
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	if len(r.fallbacks) > 0 {
		r.logger.Warn("primary provider failed, trying fallbacks",
			zap.String("provider", r.defaults), zap.Error(err))
	}

	for _, fbID := range r.fallbacks {
		fb, ok := r.providers[fbID]
		if !ok || fbID == r.defaults {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", fbID), zap.Error(err))
	}

	return nil, fmt.Errorf("all providers failed: %w", err)
}

// RefreshCredentials renews credentials on every provider that supports it.
// Providers holding static keys are skipped.
func (r *Router) RefreshCredentials(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	refreshed := 0
	for id, p := range r.providers {
		ra, ok := p.(Reauthenticator)
		if !ok {
			continue
		}
		err := ra.RefreshCredentials(ctx)
		switch {
		case err == nil:
			refreshed++
		case errors.Is(err, ErrNotRefreshable):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if refreshed == 0 && len(errs) == 0 {
		return ErrNotRefreshable
	}
	return errors.Join(errs...)
}
