package query

import (
	"reflect"
	"testing"

	"github.com/nidhogg/giffly/internal/analysis"
	"github.com/nidhogg/giffly/internal/lexicon"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Что подарить на свадьбу?", []string{"что", "подарить", "на", "свадьбу"}},
		{"  Букет,  РОЗ!!! ", []string{"букет", "роз"}},
		{"подарок до 2000 рублей", []string{"подарок", "до", "2000", "рублей"}},
		{"нежно-розовый", []string{"нежнорозовый"}},
		{"snake_case ok", []string{"snake_case", "ok"}},
		{"", []string{}},
		{"?!.,", []string{}},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	if got := NormalizeKey("  Букет НА Свадьбу "); got != "букет на свадьбу" {
		t.Errorf("NormalizeKey = %q", got)
	}
}

func TestExtract(t *testing.T) {
	x := NewExtractor(lexicon.Default())

	tests := []struct {
		name     string
		query    string
		ai       *analysis.Analysis
		gate     bool
		want     []string
		mustMiss []string
	}{
		{
			name:     "wedding question",
			query:    "Что подарить на свадьбу?",
			gate:     true,
			want:     []string{"свадьбу"},
			mustMiss: []string{"что", "подарить", "на"},
		},
		{
			name:  "themed phrase with gate open",
			query: "нужен букет невесты",
			gate:  true,
			want:  []string{"букет невесты", "свадьба", "букет", "невесты"},
		},
		{
			name:     "compound joins non-adjacent words",
			query:    "рождения у мамы день",
			want:     []string{"день рождения", "мамы"},
			mustMiss: []string{"день", "рождения"},
		},
		{
			name:  "adjacent protected phrase",
			query: "букет на день рождения",
			want:  []string{"день рождения", "букет"},
		},
		{
			name:     "short tokens dropped",
			query:    "я и ты",
			want:     nil,
			mustMiss: []string{"я", "ты"},
		},
		{
			name:  "ai terms merged",
			query: "букет маме",
			ai: &analysis.Analysis{
				Type:     "Букет",
				Theme:    "день рождения",
				Colors:   []string{"Белый", ""},
				Keywords: []string{"пионы", " "},
			},
			want: []string{"букет", "маме", "день рождения", "белый", "пионы"},
		},
		{
			name:  "ai theme terms dropped without context",
			query: "букет маме",
			ai: &analysis.Analysis{
				Theme:    "свадьба",
				Keywords: []string{"свадебный букет", "тюльпаны"},
			},
			want:     []string{"букет", "маме", "тюльпаны"},
			mustMiss: []string{"свадьба", "свадебный букет"},
		},
		{
			name:  "ai theme terms kept with context",
			query: "букет на свадьбу",
			gate:  true,
			ai:    &analysis.Analysis{Keywords: []string{"свадебный букет"}},
			want:  []string{"свадебный букет", "свадьбу"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kw := x.Extract(Tokenize(tt.query), tt.ai)
			if kw.Gate != tt.gate {
				t.Errorf("gate = %v, want %v", kw.Gate, tt.gate)
			}
			for _, w := range tt.want {
				if !kw.Terms.Has(w) {
					t.Errorf("missing keyword %q in %q", w, kw.Terms.Sorted())
				}
			}
			for _, m := range tt.mustMiss {
				if kw.Terms.Has(m) {
					t.Errorf("unexpected keyword %q in %q", m, kw.Terms.Sorted())
				}
			}
			if kw.Terms.Has("") {
				t.Error("empty keyword in set")
			}
		})
	}
}

func TestExtractSuppressesThemedPhraseWithoutGate(t *testing.T) {
	dict, err := lexicon.Parse([]byte(`
theme: {name: wedding, canonical: свадьба, triggers: [свадьба]}
phrases:
  - {phrase: белый букет, canonical: свадьба, themed: true}
  - {phrase: красный букет, canonical: торжество}
`))
	if err != nil {
		t.Fatal(err)
	}
	x := NewExtractor(dict)

	kw := x.Extract(Tokenize("белый букет и красный букет"), nil)
	if kw.Gate {
		t.Fatal("gate should be closed")
	}
	if kw.Terms.Has("белый букет") || kw.Terms.Has("свадьба") {
		t.Errorf("themed phrase leaked: %q", kw.Terms.Sorted())
	}
	if !kw.Terms.Has("красный букет") || !kw.Terms.Has("торжество") {
		t.Errorf("plain phrase missing: %q", kw.Terms.Sorted())
	}

	kw = x.Extract(Tokenize("белый букет на свадьба"), nil)
	if !kw.Terms.Has("белый букет") || !kw.Terms.Has("свадьба") {
		t.Errorf("themed phrase missing with gate open: %q", kw.Terms.Sorted())
	}
}

func TestExpand(t *testing.T) {
	x := NewExpander(lexicon.Default())

	got := x.Expand(NewSet("роза"))
	for _, w := range []string{"роза", "розы", "розовые", "роз"} {
		if !got.Has(w) {
			t.Errorf("missing %q in %q", w, got.Sorted())
		}
	}

	got = x.Expand(NewSet("невеста"))
	for _, w := range []string{"свадьба", "букет невесты", "свадебная композиция"} {
		if !got.Has(w) {
			t.Errorf("missing %q in %q", w, got.Sorted())
		}
	}

	got = x.Expand(NewSet("asdkjaslkdj"))
	if len(got) != 1 {
		t.Errorf("unknown keyword should expand to itself, got %q", got.Sorted())
	}
}

func TestExpandReachesFixedPoint(t *testing.T) {
	dict, err := lexicon.Parse([]byte(`
synonyms:
  - {canonical: a1, variants: [b1]}
  - {canonical: b1x, variants: [b1, c1]}
  - {canonical: c1y, variants: [c1, d1]}
cross_links:
  - {trigger: d1, phrases: [e1 phrase]}
`))
	if err != nil {
		t.Fatal(err)
	}
	x := NewExpander(dict)

	once := x.Expand(NewSet("a1"))
	for _, w := range []string{"a1", "b1", "b1x", "c1", "c1y", "d1", "e1 phrase"} {
		if !once.Has(w) {
			t.Errorf("missing transitive term %q in %q", w, once.Sorted())
		}
	}
	twice := x.Expand(once)
	if !reflect.DeepEqual(once.Sorted(), twice.Sorted()) {
		t.Errorf("expansion not idempotent: %q vs %q", once.Sorted(), twice.Sorted())
	}
}

func TestExtractBudget(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"подарок до 2000 рублей", 2000, true},
		{"Букет ДО 1500р", 1500, true},
		{"не дороже 3000 руб", 3000, true},
		{"бюджет 5000", 5000, true},
		{"бюджет около 4000", 4000, true},
		{"что-нибудь около 2500 ₽", 2500, true},
		{"примерно 3 тыс", 3000, true},
		{"до 5к на юбилей", 5000, true},
		{"до 2 000 рублей", 2000, true},
		{"до 2000 красных роз", 2000, true},
		{"up to 40 dollars", 40, true},
		{"мой бюджет: ровно 700", 700, true},
		{"тюльпаны до 8 марта", 0, false},
		{"букет до 1 сентября", 0, false},
		{"цветы до 9 мая", 0, false},
		{"до 8 марта, бюджет до 3000", 3000, true},
		{"до 5 тыс к 8 марта", 5000, true},
		{"бюджет 9999999999999999 тыс", 0, false},
		{"подороже 500", 0, false},
		{"букет на свадьбу", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractBudget(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ExtractBudget(%q) = %d, %v; want %d, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractBudgetPatternOrder(t *testing.T) {
	// "не дороже" outranks "около" even though "около" comes first in the text.
	got, ok := ExtractBudget("около 1000, но не дороже 1500")
	if !ok || got != 1500 {
		t.Errorf("got %d, %v; want 1500", got, ok)
	}
	// "до" outranks the bare budget fallback.
	got, ok = ExtractBudget("бюджет: сколько не жалко, до 900")
	if !ok || got != 900 {
		t.Errorf("got %d, %v; want 900", got, ok)
	}
}

func TestIsBudgetToken(t *testing.T) {
	dict := lexicon.Default()
	for tok, want := range map[string]bool{
		"2000":   true,
		"2000р":  true,
		"рублей": true,
		"5к":     true,
		"букет":  false,
		"р2":     false,
		"":       false,
	} {
		if got := IsBudgetToken(dict, tok); got != want {
			t.Errorf("IsBudgetToken(%q) = %v, want %v", tok, got, want)
		}
	}
}
