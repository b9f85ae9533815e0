package query

import "github.com/nidhogg/giffly/internal/lexicon"

// Expander grows keyword sets through the synonym dictionary.
type Expander struct {
	dict *lexicon.Dictionary
}

// NewExpander creates an expander over a shared read-only dictionary.
func NewExpander(dict *lexicon.Dictionary) *Expander {
	return &Expander{dict: dict}
}

// Expand returns the synonym closure of in. Every keyword matching a canonical
// term or one of its variants pulls in the whole group; cross-link triggers
// add their linked phrases. Terms added along the way are expanded too, so
// the result is a fixed point: Expand(Expand(k)) equals Expand(k).
func (x *Expander) Expand(in Set) Set {
	out := in.Clone()
	frontier := in.Sorted()
	for len(frontier) > 0 {
		var next []string
		push := func(term string) {
			if out.Add(term) {
				next = append(next, term)
			}
		}
		for _, kw := range frontier {
			for _, g := range x.dict.Groups(kw) {
				push(g.Canonical)
				for _, v := range g.Variants {
					push(v)
				}
			}
			for _, p := range x.dict.CrossLinked(kw) {
				push(p)
			}
		}
		frontier = next
	}
	return out
}
