// Package scoring computes how well each catalog product matches a keyword
// set.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/giffly/internal/analysis"
	"github.com/nidhogg/giffly/internal/catalog"
	"github.com/nidhogg/giffly/internal/lexicon"
	"github.com/nidhogg/giffly/internal/metrics"
)

// Config holds the discard thresholds.
type Config struct {
	// MinScore drops matches whose normalized score is below it.
	MinScore float64
	// MinRelevance drops matches whose rounded percentage is below it.
	MinRelevance int
}

// Input is everything the engine needs about one query.
type Input struct {
	// Keywords are the expanded content keywords, budget words removed.
	Keywords []string
	// Gate is true when the raw query mentions the dictionary theme.
	Gate     bool
	Analysis *analysis.Analysis
	// Ceiling comes from the query text and filters products out.
	Ceiling *int
	// SoftCeiling comes from the AI analysis and only annotates matches.
	SoftCeiling *int
	// BudgetOnly marks queries that named nothing but a price.
	BudgetOnly bool
}

// Match is one product that survived scoring.
type Match struct {
	Product     catalog.Product
	Price       float64
	Score       float64
	BudgetMatch bool
	Matched     []string
}

// Relevance is the integer percentage shown to users.
func (m Match) Relevance() int { return Relevance(m.Score) }

// Relevance rounds score*100 half away from zero.
func Relevance(score float64) int {
	return int(math.Round(score * 100))
}

// Engine scores products against a dictionary.
type Engine struct {
	dict       *lexicon.Dictionary
	cfg        Config
	themeWords []string
	logger     *zap.Logger
}

// NewEngine creates an engine over a shared read-only dictionary.
func NewEngine(dict *lexicon.Dictionary, cfg Config, logger *zap.Logger) *Engine {
	var words []string
	seen := make(map[string]bool)
	for _, w := range append([]string{dict.Theme.Canonical}, dict.Theme.Triggers...) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	return &Engine{dict: dict, cfg: cfg, themeWords: words, logger: logger}
}

// Score returns the products that match in, unsorted. Products with a
// malformed price are skipped and logged.
func (e *Engine) Score(products []catalog.Product, in Input) []Match {
	keywords := append([]string(nil), in.Keywords...)
	sort.Strings(keywords)

	requestedFlowers := e.requestedFlowers(keywords)
	requestedPalettes := e.requestedPalettes(keywords, in.Analysis)

	var out []Match
	for _, p := range products {
		price, err := ParsePrice(p.Price)
		if err != nil {
			e.logger.Warn("skipping product with malformed price",
				zap.Int64("product_id", p.ID),
				zap.String("price", p.Price),
				zap.Error(err))
			metrics.RecordSkippedProduct("bad_price")
			continue
		}
		if in.Ceiling != nil && price > float64(*in.Ceiling) {
			continue
		}

		text := strings.ToLower(p.Name + " " + p.Description)
		name := strings.ToLower(p.Name)

		var raw float64
		var matched []string
		if in.BudgetOnly {
			raw = budgetOnlyBase
		} else {
			raw, matched = e.keywordScore(keywords, text, name, in.Gate)
			raw += e.analysisScore(in.Analysis, text, in.Gate)
			raw += flowerScore(requestedFlowers, text)
			raw += paletteScore(requestedPalettes, text)
		}
		if raw <= 0 {
			continue
		}

		score := raw
		if !in.BudgetOnly {
			score = raw / (float64(max(len(keywords), 1)) * damping)
		}

		ceiling := in.Ceiling
		if ceiling == nil {
			ceiling = in.SoftCeiling
		}
		if ceiling != nil && *ceiling > 0 && price <= float64(*ceiling) && price >= proximityShare*float64(*ceiling) {
			score *= proximityBoost
		}
		if !in.Gate && e.leaksTheme(text) {
			score *= leakPenalty
		}

		if score < e.cfg.MinScore || Relevance(score) < e.cfg.MinRelevance {
			continue
		}

		out = append(out, Match{
			Product:     p,
			Price:       price,
			Score:       score,
			BudgetMatch: in.SoftCeiling == nil || price <= float64(*in.SoftCeiling),
			Matched:     matched,
		})
	}
	return out
}

func (e *Engine) keywordScore(keywords []string, text, name string, gate bool) (float64, []string) {
	var raw float64
	var matched []string
	for _, kw := range keywords {
		if kw == "" || !strings.Contains(text, kw) {
			continue
		}
		matched = append(matched, kw)
		raw += keywordHit
		if strings.Contains(name, kw) {
			raw += nameHit
		}
		if strings.Contains(kw, " ") {
			raw += phraseHit
		}
		if e.dict.IsThemeTerm(kw) {
			if gate {
				raw += themeBonus
			} else {
				raw += themePenalty
			}
		}
	}
	return raw, matched
}

func (e *Engine) analysisScore(a *analysis.Analysis, text string, gate bool) float64 {
	if a == nil {
		return 0
	}
	fields := append([]string{a.Type, a.Theme}, a.Colors...)
	var raw float64
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || !strings.Contains(text, f) {
			continue
		}
		if e.dict.IsThemeTerm(f) && !gate {
			raw += themePenalty
			continue
		}
		raw += aiFieldHit
	}
	return raw
}

func (e *Engine) requestedFlowers(keywords []string) []lexicon.FlowerCategory {
	var out []lexicon.FlowerCategory
	for _, f := range e.dict.Flowers {
		if containsAny(keywords, f.Keywords) {
			out = append(out, f)
		}
	}
	return out
}

func (e *Engine) requestedPalettes(keywords []string, a *analysis.Analysis) []lexicon.Palette {
	asked := append([]string(nil), keywords...)
	if a != nil {
		for _, c := range a.Colors {
			asked = append(asked, strings.ToLower(strings.TrimSpace(c)))
		}
	}
	var out []lexicon.Palette
	for _, p := range e.dict.Palettes {
		if containsAny(asked, []string{p.Name}) {
			out = append(out, p)
		}
	}
	return out
}

func flowerScore(flowers []lexicon.FlowerCategory, text string) float64 {
	if len(flowers) == 0 {
		return 0
	}
	title := strings.Join(firstWords(text, titleWords), " ")
	var raw float64
	for _, f := range flowers {
		hit := false
		inTitle := false
		for _, kw := range f.Keywords {
			if strings.Contains(text, kw) {
				hit = true
			}
			if strings.Contains(title, kw) {
				inTitle = true
			}
		}
		if !hit {
			continue
		}
		raw += f.Weight
		for _, v := range f.Varieties {
			if strings.Contains(text, v) {
				raw += varietyHit
			}
		}
		if inTitle {
			raw += titleProximity
		}
	}
	return raw
}

func paletteScore(palettes []lexicon.Palette, text string) float64 {
	var raw float64
	for _, p := range palettes {
		for _, c := range p.Colors {
			if strings.Contains(text, c) {
				raw += paletteHit
				break
			}
		}
	}
	return raw
}

func (e *Engine) leaksTheme(text string) bool {
	for _, w := range e.themeWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// ParsePrice reads a decimal price. Non-numeric, non-finite and negative
// values are rejected.
func ParsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("price %q is not finite", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("price %q is negative", s)
	}
	return v, nil
}

func containsAny(set, want []string) bool {
	for _, w := range want {
		for _, s := range set {
			if s == w {
				return true
			}
		}
	}
	return false
}

func firstWords(text string, n int) []string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return words
}
