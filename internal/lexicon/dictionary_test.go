package lexicon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDictionaryLoads(t *testing.T) {
	d := Default()
	if len(d.Synonyms) == 0 {
		t.Fatal("expected synonym groups in embedded dictionary")
	}
	if d.Theme.Canonical != "свадьба" {
		t.Errorf("theme canonical = %q, want свадьба", d.Theme.Canonical)
	}
	if d.MaxPhraseWords() < 2 {
		t.Errorf("max phrase words = %d, want >= 2", d.MaxPhraseWords())
	}
}

func TestLookups(t *testing.T) {
	d := Default()

	tests := []struct {
		name string
		fn   func(string) bool
		in   string
		want bool
	}{
		{"stop word", d.IsStopWord, "что", true},
		{"not stop word", d.IsStopWord, "букет", false},
		{"budget token", d.IsBudgetToken, "рублей", true},
		{"trigger", d.IsThemeTrigger, "свадьбу", true},
		{"not trigger", d.IsThemeTrigger, "юбилей", false},
		{"theme variant", d.IsThemeTerm, "букет невесты", true},
		{"theme word in phrase", d.IsThemeTerm, "свадебная композиция", true},
		{"non theme", d.IsThemeTerm, "день рождения", false},
		{"theme term is case-insensitive", d.IsThemeTerm, "  Свадьба ", true},
		{"known flower variety", d.Known, "кустовые", true},
		{"known palette", d.Known, "пастельный", true},
		{"unknown", d.Known, "asdkjaslkdj", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("%s(%q) = %v, want %v", tt.name, tt.in, got, tt.want)
			}
		})
	}
}

func TestGroupsAndPhrases(t *testing.T) {
	d := Default()

	groups := d.Groups("роза")
	if len(groups) != 1 || groups[0].Canonical != "розы" {
		t.Fatalf("Groups(роза) = %+v, want the розы group", groups)
	}
	if d.Groups("asdkjaslkdj") != nil {
		t.Error("expected no groups for unknown term")
	}

	p, ok := d.Phrase("букет", "невесты")
	if !ok {
		t.Fatal("expected protected phrase букет невесты")
	}
	if !p.Themed || p.Canonical != "свадьба" {
		t.Errorf("phrase = %+v, want themed свадьба", p)
	}

	if links := d.CrossLinked("невеста"); len(links) == 0 {
		t.Error("expected cross-links for невеста")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.yaml")
	content := `
stop_words: [и]
theme: {name: wedding, canonical: Свадьба, triggers: [свадьба]}
synonyms:
  - canonical: Букет
    variants: [Цветы, " букеты "]
phrases:
  - {phrase: "букет  невесты", canonical: свадьба, themed: true}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g := d.Groups("цветы")
	if len(g) != 1 || g[0].Canonical != "букет" {
		t.Fatalf("Groups(цветы) = %+v", g)
	}
	if g[0].Variants[1] != "букеты" {
		t.Errorf("variant not normalized: %q", g[0].Variants[1])
	}
	if _, ok := d.Phrase("букет", "невесты"); !ok {
		t.Error("phrase whitespace not normalized")
	}
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"single word phrase", "phrases: [{phrase: букет, canonical: букет}]", "at least two words"},
		{"empty canonical", "synonyms: [{canonical: '', variants: [a]}]", "empty canonical"},
		{"zero flower weight", "flowers: [{name: розы, weight: 0, keywords: [роза]}]", "weight must be positive"},
		{"broken yaml", "synonyms: [", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestWithGroupsOverridesAndAppends(t *testing.T) {
	base := Default()
	merged := base.withGroups([]SynonymGroup{
		{Canonical: "розы", Variants: []string{"роза", "rose"}},
		{Canonical: "орхидеи", Variants: []string{"орхидея"}},
	})

	if g := merged.Groups("rose"); len(g) != 1 || g[0].Canonical != "розы" {
		t.Errorf("override not applied: %+v", g)
	}
	if merged.Groups("розовый") != nil {
		t.Error("overridden group should drop old variants")
	}
	if g := merged.Groups("орхидея"); len(g) != 1 {
		t.Errorf("new group not appended: %+v", g)
	}
	if base.Groups("rose") != nil {
		t.Error("base dictionary was mutated")
	}
	if len(merged.Synonyms) != len(base.Synonyms)+1 {
		t.Errorf("merged has %d groups, want %d", len(merged.Synonyms), len(base.Synonyms)+1)
	}
}
