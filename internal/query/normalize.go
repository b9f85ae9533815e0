// Package query turns free-text gift requests into keyword sets and budget
// constraints.
package query

import (
	"regexp"
	"sort"
	"strings"
)

// punctRe matches every rune that is neither a word character nor whitespace.
// Go's \w is ASCII-only, so letters and digits are spelled out as Unicode classes.
var punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Tokenize strips punctuation, lowercases and splits raw on whitespace.
// Token order is preserved for phrase detection.
func Tokenize(raw string) []string {
	cleaned := punctRe.ReplaceAllString(strings.ToLower(raw), "")
	return strings.Fields(cleaned)
}

// NormalizeKey is the cache form of a query: lowercased and trimmed.
func NormalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Set is an unordered collection of keywords.
type Set map[string]struct{}

// NewSet builds a set from terms, dropping empty entries.
func NewSet(terms ...string) Set {
	s := make(Set, len(terms))
	for _, t := range terms {
		s.Add(t)
	}
	return s
}

// Add inserts term unless it is empty. It reports whether the set grew.
func (s Set) Add(term string) bool {
	if term == "" {
		return false
	}
	if _, ok := s[term]; ok {
		return false
	}
	s[term] = struct{}{}
	return true
}

// Has reports membership.
func (s Set) Has(term string) bool {
	_, ok := s[term]
	return ok
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Sorted returns the terms in lexical order, for deterministic iteration.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
