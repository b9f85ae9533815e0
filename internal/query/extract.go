package query

import (
	"strings"
	"unicode/utf8"

	"github.com/nidhogg/giffly/internal/analysis"
	"github.com/nidhogg/giffly/internal/lexicon"
)

// minTokenRunes is the shortest plain token kept as a keyword.
const minTokenRunes = 3

// Keywords is the raw output of extraction.
type Keywords struct {
	Terms Set
	// Gate is true when the raw query mentions the dictionary's theme.
	// Themed phrases and theme-referencing AI terms are dropped while it is false.
	Gate bool
}

// Extractor pulls keywords out of a token stream.
type Extractor struct {
	dict *lexicon.Dictionary
}

// NewExtractor creates an extractor over a shared read-only dictionary.
func NewExtractor(dict *lexicon.Dictionary) *Extractor {
	return &Extractor{dict: dict}
}

// Extract builds the raw keyword set for tokens, merging ai when present.
func (e *Extractor) Extract(tokens []string, ai *analysis.Analysis) Keywords {
	kw := Keywords{Terms: make(Set), Gate: e.HasThemeContext(tokens)}

	e.scanPhrases(tokens, kw)
	e.filterTokens(tokens, kw)

	if ai != nil {
		terms := append([]string(nil), ai.Keywords...)
		terms = append(terms, ai.Type, ai.Theme)
		terms = append(terms, ai.Colors...)
		for _, t := range terms {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if !kw.Gate && e.dict.IsThemeTerm(t) {
				continue
			}
			kw.Terms.Add(t)
		}
	}
	return kw
}

// HasThemeContext reports whether any raw token is a theme trigger.
func (e *Extractor) HasThemeContext(tokens []string) bool {
	for _, t := range tokens {
		if e.dict.IsThemeTrigger(t) {
			return true
		}
	}
	return false
}

// scanPhrases emits protected phrases and their canonical terms, longest first.
func (e *Extractor) scanPhrases(tokens []string, kw Keywords) {
	for n := e.dict.MaxPhraseWords(); n >= 2; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			p, ok := e.dict.Phrase(tokens[i : i+n]...)
			if !ok {
				continue
			}
			if p.Themed && !kw.Gate {
				continue
			}
			kw.Terms.Add(p.Phrase)
			kw.Terms.Add(p.Canonical)
		}
	}
}

// filterTokens applies the stop-word and length rules plus compound joining.
func (e *Extractor) filterTokens(tokens []string, kw Keywords) {
	present := NewSet(tokens...)
	members := make(Set)
	for _, c := range e.dict.Compounds {
		if present.Has(c.First) && present.Has(c.Second) {
			kw.Terms.Add(c.Phrase)
			members.Add(c.First)
			members.Add(c.Second)
		}
	}

	for _, t := range tokens {
		if members.Has(t) || e.dict.IsStopWord(t) {
			continue
		}
		if utf8.RuneCountInString(t) < minTokenRunes {
			continue
		}
		kw.Terms.Add(t)
	}
}
