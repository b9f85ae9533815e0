// Package recommend runs the gift recommendation pipeline and assembles its
// user-facing result.
package recommend

import (
	"errors"
	"sort"

	"github.com/nidhogg/giffly/internal/analysis"
	"github.com/nidhogg/giffly/internal/catalog"
	"github.com/nidhogg/giffly/internal/scoring"
)

// User-facing messages.
const (
	msgFound      = "Вот подходящие букеты по вашему запросу:"
	msgNotFound   = "К сожалению, не удалось найти подходящие букеты по вашему запросу. Попробуйте изменить формулировку."
	msgOverBudget = " Некоторые варианты превышают указанный бюджет."
	msgNoKeywords = "Не удалось определить ключевые слова в запросе"
	msgInternal   = "Произошла ошибка при подборе рекомендаций. Попробуйте повторить запрос позже."
)

var (
	// ErrNoKeywords means the query yielded nothing to search for.
	ErrNoKeywords = errors.New("no keywords in query")
	// ErrInternal covers every other failure.
	ErrInternal = errors.New("recommendation failed")
)

const (
	DefaultLimit = 5
	MaxLimit     = 10
)

// RankedProduct is one recommended product.
type RankedProduct struct {
	Product    catalog.Product `json:"product"`
	Relevance  int             `json:"relevance"`
	MatchScore float64         `json:"match_score"`
	// BudgetMatch is set only when the AI analysis supplied a budget.
	BudgetMatch *bool    `json:"budget_match,omitempty"`
	Matched     []string `json:"matched_keywords,omitempty"`
}

// Result is the public envelope. Failures are data: Success is false and
// Error holds the message.
type Result struct {
	Success  bool            `json:"success"`
	Query    string          `json:"query,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Products []RankedProduct `json:"products"`
	Budget   *int            `json:"budget,omitempty"`
	// Analysis is the AI reading of the query that shaped the ranking.
	Analysis *analysis.Analysis `json:"analysis,omitempty"`
}

// Err maps a failed result back to its sentinel error.
func (r *Result) Err() error {
	switch {
	case r.Success:
		return nil
	case r.Error == msgNoKeywords:
		return ErrNoKeywords
	default:
		return ErrInternal
	}
}

func failure(err error) *Result {
	msg := msgInternal
	if errors.Is(err, ErrNoKeywords) {
		msg = msgNoKeywords
	}
	return &Result{Success: false, Error: msg, Products: []RankedProduct{}}
}

// Rank orders matches by score, best first, and keeps at most limit of them.
// Equal scores keep their input order. limit is clamped to [1, MaxLimit];
// zero or negative means DefaultLimit.
func Rank(matches []scoring.Match, limit int, annotateBudget bool) []RankedProduct {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	sorted := append([]scoring.Match(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]RankedProduct, len(sorted))
	for i, m := range sorted {
		out[i] = RankedProduct{
			Product:    m.Product,
			Relevance:  m.Relevance(),
			MatchScore: m.Score,
			Matched:    m.Matched,
		}
		if annotateBudget {
			ok := m.BudgetMatch
			out[i].BudgetMatch = &ok
		}
	}
	return out
}

// assemble builds the success envelope for ranked products.
func assemble(query string, ranked []RankedProduct, budget *int, ai *analysis.Analysis) *Result {
	res := &Result{Success: true, Query: query, Products: ranked, Budget: budget, Analysis: ai}
	if len(ranked) == 0 {
		res.Message = msgNotFound
		return res
	}
	res.Message = msgFound
	for _, p := range ranked {
		if p.BudgetMatch != nil && !*p.BudgetMatch {
			res.Message += msgOverBudget
			break
		}
	}
	return res
}
