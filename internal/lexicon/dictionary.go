package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// SynonymGroup maps a canonical term to its ordered variants.
// Variants may be compound phrases.
type SynonymGroup struct {
	Canonical string   `yaml:"canonical" json:"canonical"`
	Variants  []string `yaml:"variants" json:"variants"`
}

// ProtectedPhrase is a multi-word sequence that survives stop-word filtering.
// Themed phrases are dropped when the contextual gate is closed.
type ProtectedPhrase struct {
	Phrase    string `yaml:"phrase" json:"phrase"`
	Canonical string `yaml:"canonical" json:"canonical"`
	Themed    bool   `yaml:"themed" json:"themed"`
}

// Compound joins two tokens into one phrase when both occur anywhere in a query.
type Compound struct {
	First  string `yaml:"first" json:"first"`
	Second string `yaml:"second" json:"second"`
	Phrase string `yaml:"phrase" json:"phrase"`
}

// CrossLink injects extra phrases when its trigger keyword is present.
type CrossLink struct {
	Trigger string   `yaml:"trigger" json:"trigger"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

// Theme is the gated domain theme. Any trigger in the raw query opens the gate.
type Theme struct {
	Name      string   `yaml:"name" json:"name"`
	Canonical string   `yaml:"canonical" json:"canonical"`
	Triggers  []string `yaml:"triggers" json:"triggers"`
}

// FlowerCategory is a flower type the scorer rewards when it is requested.
type FlowerCategory struct {
	Name      string   `yaml:"name" json:"name"`
	Weight    float64  `yaml:"weight" json:"weight"`
	Keywords  []string `yaml:"keywords" json:"keywords"`
	Varieties []string `yaml:"varieties" json:"varieties"`
}

// Palette is a named colour combination.
type Palette struct {
	Name   string   `yaml:"name" json:"name"`
	Colors []string `yaml:"colors" json:"colors"`
}

// Dictionary holds every static table the recommendation pipeline reads.
// It is built once and must not be mutated afterwards.
type Dictionary struct {
	StopWords    []string          `yaml:"stop_words"`
	BudgetTokens []string          `yaml:"budget_tokens"`
	Theme        Theme             `yaml:"theme"`
	Synonyms     []SynonymGroup    `yaml:"synonyms"`
	Phrases      []ProtectedPhrase `yaml:"phrases"`
	Compounds    []Compound        `yaml:"compounds"`
	CrossLinks   []CrossLink       `yaml:"cross_links"`
	Flowers      []FlowerCategory  `yaml:"flowers"`
	Palettes     []Palette         `yaml:"palettes"`

	stop       map[string]struct{}
	budget     map[string]struct{}
	triggers   map[string]struct{}
	themeTerms map[string]struct{}
	groupOf    map[string][]int // term -> indexes into Synonyms
	phraseOf   map[string]ProtectedPhrase
	linksOf    map[string][]string
	known      map[string]struct{}
	maxPhrase  int
}

// Default returns the embedded dictionary. It panics only if the embedded
// file is broken, which the package tests guard against.
func Default() *Dictionary {
	d, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("lexicon: embedded dictionary: %v", err))
	}
	return d
}

// Load reads a YAML dictionary file.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	return d, nil
}

// Parse decodes and validates a YAML dictionary.
func Parse(data []byte) (*Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	d.index()
	return &d, nil
}

func (d *Dictionary) validate() error {
	for i, g := range d.Synonyms {
		if norm(g.Canonical) == "" {
			return fmt.Errorf("synonyms[%d]: empty canonical", i)
		}
	}
	for i, p := range d.Phrases {
		if len(strings.Fields(p.Phrase)) < 2 {
			return fmt.Errorf("phrases[%d] %q: need at least two words", i, p.Phrase)
		}
		if norm(p.Canonical) == "" {
			return fmt.Errorf("phrases[%d] %q: empty canonical", i, p.Phrase)
		}
	}
	for i, c := range d.Compounds {
		if c.First == "" || c.Second == "" || c.Phrase == "" {
			return fmt.Errorf("compounds[%d]: first, second and phrase are required", i)
		}
	}
	for i, f := range d.Flowers {
		if f.Weight <= 0 {
			return fmt.Errorf("flowers[%d] %q: weight must be positive", i, f.Name)
		}
		if len(f.Keywords) == 0 {
			return fmt.Errorf("flowers[%d] %q: no keywords", i, f.Name)
		}
	}
	return nil
}

// index normalizes every entry and builds the lookup sets.
func (d *Dictionary) index() {
	d.stop = toSet(d.StopWords)
	d.budget = toSet(d.BudgetTokens)
	d.triggers = toSet(d.Theme.Triggers)
	d.Theme.Canonical = norm(d.Theme.Canonical)

	d.groupOf = make(map[string][]int)
	for i := range d.Synonyms {
		g := &d.Synonyms[i]
		g.Canonical = norm(g.Canonical)
		g.Variants = normAll(g.Variants)
		d.groupOf[g.Canonical] = appendIndex(d.groupOf[g.Canonical], i)
		for _, v := range g.Variants {
			d.groupOf[v] = appendIndex(d.groupOf[v], i)
		}
	}

	d.themeTerms = toSet(d.Theme.Triggers)
	if d.Theme.Canonical != "" {
		d.themeTerms[d.Theme.Canonical] = struct{}{}
		for _, i := range d.groupOf[d.Theme.Canonical] {
			if d.Synonyms[i].Canonical != d.Theme.Canonical {
				continue
			}
			for _, v := range d.Synonyms[i].Variants {
				d.themeTerms[v] = struct{}{}
			}
		}
	}

	d.phraseOf = make(map[string]ProtectedPhrase, len(d.Phrases))
	d.maxPhrase = 0
	for i := range d.Phrases {
		p := &d.Phrases[i]
		p.Phrase = strings.Join(strings.Fields(norm(p.Phrase)), " ")
		p.Canonical = norm(p.Canonical)
		d.phraseOf[p.Phrase] = *p
		if n := len(strings.Fields(p.Phrase)); n > d.maxPhrase {
			d.maxPhrase = n
		}
	}

	for i := range d.Compounds {
		c := &d.Compounds[i]
		c.First, c.Second, c.Phrase = norm(c.First), norm(c.Second), norm(c.Phrase)
	}

	d.linksOf = make(map[string][]string, len(d.CrossLinks))
	for i := range d.CrossLinks {
		l := &d.CrossLinks[i]
		l.Trigger = norm(l.Trigger)
		l.Phrases = normAll(l.Phrases)
		d.linksOf[l.Trigger] = append(d.linksOf[l.Trigger], l.Phrases...)
	}

	for i := range d.Flowers {
		f := &d.Flowers[i]
		f.Name = norm(f.Name)
		f.Keywords = normAll(f.Keywords)
		f.Varieties = normAll(f.Varieties)
	}
	for i := range d.Palettes {
		p := &d.Palettes[i]
		p.Name = norm(p.Name)
		p.Colors = normAll(p.Colors)
	}

	d.known = make(map[string]struct{})
	add := func(terms ...string) {
		for _, t := range terms {
			if t != "" {
				d.known[t] = struct{}{}
			}
		}
	}
	for t := range d.themeTerms {
		add(t)
	}
	for t := range d.groupOf {
		add(t)
	}
	for _, p := range d.Phrases {
		add(p.Phrase, p.Canonical)
	}
	for _, c := range d.Compounds {
		add(c.Phrase)
	}
	for _, l := range d.CrossLinks {
		add(l.Trigger)
		add(l.Phrases...)
	}
	for _, f := range d.Flowers {
		add(f.Name)
		add(f.Keywords...)
		add(f.Varieties...)
	}
	for _, p := range d.Palettes {
		add(p.Name)
		add(p.Colors...)
	}
}

// IsStopWord reports whether token is filtered out of keyword sets.
func (d *Dictionary) IsStopWord(token string) bool {
	_, ok := d.stop[token]
	return ok
}

// IsBudgetToken reports whether token is a currency unit or multiplier.
func (d *Dictionary) IsBudgetToken(token string) bool {
	_, ok := d.budget[token]
	return ok
}

// IsThemeTrigger reports whether a raw query token opens the contextual gate.
func (d *Dictionary) IsThemeTrigger(token string) bool {
	_, ok := d.triggers[token]
	return ok
}

// IsThemeTerm reports whether term references the theme dictionary: the term
// itself or any of its words is a trigger, the theme canonical or one of its
// variants.
func (d *Dictionary) IsThemeTerm(term string) bool {
	term = norm(term)
	if term == "" {
		return false
	}
	if _, ok := d.themeTerms[term]; ok {
		return true
	}
	for _, w := range strings.Fields(term) {
		if _, ok := d.themeTerms[w]; ok {
			return true
		}
	}
	return false
}

// Phrase returns the protected phrase registered for the given words.
func (d *Dictionary) Phrase(words ...string) (ProtectedPhrase, bool) {
	p, ok := d.phraseOf[strings.Join(words, " ")]
	return p, ok
}

// MaxPhraseWords is the word count of the longest protected phrase.
func (d *Dictionary) MaxPhraseWords() int { return d.maxPhrase }

// Groups returns the synonym groups term belongs to, as canonical or variant.
func (d *Dictionary) Groups(term string) []SynonymGroup {
	idx := d.groupOf[term]
	if len(idx) == 0 {
		return nil
	}
	out := make([]SynonymGroup, len(idx))
	for i, j := range idx {
		out[i] = d.Synonyms[j]
	}
	return out
}

// CrossLinked returns the extra phrases injected for trigger.
func (d *Dictionary) CrossLinked(trigger string) []string {
	return d.linksOf[trigger]
}

// Known reports whether term appears anywhere in the dictionary.
func (d *Dictionary) Known(term string) bool {
	_, ok := d.known[norm(term)]
	return ok
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = norm(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s = norm(s); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func appendIndex(idx []int, i int) []int {
	for _, j := range idx {
		if j == i {
			return idx
		}
	}
	return append(idx, i)
}
