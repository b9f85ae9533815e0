package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/nidhogg/giffly/internal/analysis"
	"github.com/nidhogg/giffly/internal/cache"
	"github.com/nidhogg/giffly/internal/catalog"
	"github.com/nidhogg/giffly/internal/lexicon"
	"github.com/nidhogg/giffly/internal/metrics"
	"github.com/nidhogg/giffly/internal/query"
	"github.com/nidhogg/giffly/internal/scoring"
)

// CachePrefix namespaces cached results.
const CachePrefix = "recommendations_"

// Analyzer reads structured hints out of a query. A nil result means no hint.
type Analyzer interface {
	Analyze(ctx context.Context, query string) *analysis.Analysis
}

// Config tunes the pipeline.
type Config struct {
	Limit        int
	CacheTTL     time.Duration
	MinScore     float64
	MinRelevance int
}

// Service is the recommendation pipeline. It is safe for concurrent use:
// the only shared state is the read-only dictionary and the cache.
type Service struct {
	dict      *lexicon.Dictionary
	extractor *query.Extractor
	expander  *query.Expander
	engine    *scoring.Engine
	catalog   catalog.Catalog
	cache     cache.Cache
	analyzer  Analyzer
	cfg       Config
	logger    *zap.Logger
}

type noAnalysis struct{}

func (noAnalysis) Analyze(context.Context, string) *analysis.Analysis { return nil }

// NewService wires the pipeline. cache and analyzer may be nil.
func NewService(dict *lexicon.Dictionary, cat catalog.Catalog, c cache.Cache, an Analyzer, cfg Config, logger *zap.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if an == nil {
		an = noAnalysis{}
	}
	return &Service{
		dict:      dict,
		extractor: query.NewExtractor(dict),
		expander:  query.NewExpander(dict),
		engine: scoring.NewEngine(dict, scoring.Config{
			MinScore:     cfg.MinScore,
			MinRelevance: cfg.MinRelevance,
		}, logger),
		catalog:  cat,
		cache:    c,
		analyzer: an,
		cfg:      cfg,
		logger:   logger,
	}
}

// GetRecommendations answers a free-text gift request. It never fails:
// every error is reported inside the Result.
func (s *Service) GetRecommendations(ctx context.Context, q string) (res *Result) {
	start := time.Now()
	outcome := "error"
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recommendation pipeline panicked",
				zap.String("query", q),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res = failure(ErrInternal)
			outcome = "error"
		}
		metrics.RecordRecommendation(outcome, len(res.Products), time.Since(start))
	}()

	key := CachePrefix + query.NormalizeKey(q)
	if cached, ok := s.lookup(ctx, key); ok {
		outcome = "cached"
		return cached
	}

	res, err := s.run(ctx, q)
	switch {
	case errors.Is(err, ErrNoKeywords):
		outcome = "no_keywords"
		return failure(ErrNoKeywords)
	case err != nil:
		s.logger.Error("recommendation failed", zap.String("query", q), zap.Error(err))
		return failure(ErrInternal)
	}

	if len(res.Products) == 0 {
		outcome = "empty"
	} else {
		outcome = "found"
	}
	s.store(ctx, key, res)
	return res
}

func (s *Service) run(ctx context.Context, q string) (*Result, error) {
	tokens := query.Tokenize(q)
	if len(tokens) == 0 {
		return nil, ErrNoKeywords
	}

	ai := s.analyzer.Analyze(ctx, q)
	kw := s.extractor.Extract(tokens, ai)

	var ceiling, soft *int
	if n, ok := query.ExtractBudget(q); ok {
		ceiling = &n
	} else if ai != nil && ai.Budget != nil {
		if n, ok := parseAIBudget(*ai.Budget); ok {
			soft = &n
		}
	}

	content := make(query.Set)
	for t := range kw.Terms {
		if !query.IsBudgetToken(s.dict, t) {
			content.Add(t)
		}
	}
	budgetOnly := len(content) == 0
	if budgetOnly && ceiling == nil {
		return nil, ErrNoKeywords
	}

	expanded := s.expander.Expand(content)

	products, err := s.catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	if !budgetOnly && ceiling == nil && !s.understood(expanded, products) {
		s.logger.Debug("query not understood", zap.String("query", q), zap.Strings("keywords", expanded.Sorted()))
		return nil, ErrNoKeywords
	}

	matches := s.engine.Score(products, scoring.Input{
		Keywords:    expanded.Sorted(),
		Gate:        kw.Gate,
		Analysis:    ai,
		Ceiling:     ceiling,
		SoftCeiling: soft,
		BudgetOnly:  budgetOnly,
	})
	ranked := Rank(matches, s.cfg.Limit, soft != nil)

	budget := ceiling
	if budget == nil {
		budget = soft
	}
	s.logger.Debug("recommendations ranked",
		zap.String("query", q),
		zap.Int("keywords", len(expanded)),
		zap.Int("matches", len(matches)),
		zap.Int("returned", len(ranked)),
		zap.Bool("gate", kw.Gate))
	return assemble(q, ranked, budget, ai), nil
}

// understood reports whether any keyword is known to the dictionary or
// occurs in some product's text.
func (s *Service) understood(keywords query.Set, products []catalog.Product) bool {
	for k := range keywords {
		if s.dict.Known(k) {
			return true
		}
	}
	for _, p := range products {
		text := strings.ToLower(p.Name + " " + p.Description)
		for k := range keywords {
			if strings.Contains(text, k) {
				return true
			}
		}
	}
	return false
}

func (s *Service) lookup(ctx context.Context, key string) (*Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		metrics.RecordCacheMiss()
		return nil, false
	case err != nil:
		metrics.RecordCacheError()
		s.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		metrics.RecordCacheError()
		s.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.RecordCacheHit()
	return &res, true
}

func (s *Service) store(ctx context.Context, key string, res *Result) {
	if s.cache == nil || !res.Success {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		s.logger.Warn("encode result for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateCache drops every cached result, for use after catalog changes.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteByPrefix(ctx, CachePrefix)
}

// Recent returns the newest catalog products.
func (s *Service) Recent(ctx context.Context, n int) ([]catalog.Product, error) {
	return s.catalog.Recent(ctx, n)
}

// parseAIBudget reads the model's budget hint, which may be a bare number
// ("3000") or a phrase ("до 3 тыс рублей").
func parseAIBudget(s string) (int, bool) {
	if n, ok := query.ExtractBudget(s); ok {
		return n, true
	}
	if n, ok := query.ExtractBudget("до " + s); ok {
		return n, true
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
