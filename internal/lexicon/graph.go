package lexicon

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// LoadGraph overlays synonym groups curated in Neo4j onto base.
//
// The graph stores (:Variant {term})-[:VARIANT_OF]->(:Canonical {term}).
// A canonical defined in the graph replaces the group of the same canonical
// in base; new canonicals are appended. base is left untouched.
func LoadGraph(ctx context.Context, driver neo4j.DriverWithContext, base *Dictionary, logger *zap.Logger) (*Dictionary, error) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (c:Canonical)
		 OPTIONAL MATCH (v:Variant)-[:VARIANT_OF]->(c)
		 WITH c, v ORDER BY v.term
		 RETURN c.term AS canonical, collect(v.term) AS variants
		 ORDER BY canonical`, nil)
	if err != nil {
		return nil, fmt.Errorf("query synonym graph: %w", err)
	}

	var groups []SynonymGroup
	for result.Next(ctx) {
		rec := result.Record()
		var g SynonymGroup
		if v, ok := rec.Get("canonical"); ok && v != nil {
			g.Canonical, _ = v.(string)
		}
		if v, ok := rec.Get("variants"); ok && v != nil {
			if list, ok := v.([]any); ok {
				for _, item := range list {
					if s, ok := item.(string); ok {
						g.Variants = append(g.Variants, s)
					}
				}
			}
		}
		if norm(g.Canonical) != "" {
			groups = append(groups, g)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read synonym graph: %w", err)
	}

	merged := base.withGroups(groups)
	logger.Info("synonym graph loaded", zap.Int("groups", len(groups)), zap.Int("total", len(merged.Synonyms)))
	return merged, nil
}

// WriteGraph stores synonym groups in Neo4j in the layout LoadGraph reads.
func WriteGraph(ctx context.Context, driver neo4j.DriverWithContext, groups []SynonymGroup) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, g := range groups {
		_, err := session.Run(ctx,
			`MERGE (c:Canonical {term: $canonical})
			 WITH c
			 UNWIND $variants AS term
			 MERGE (v:Variant {term: term})
			 MERGE (v)-[:VARIANT_OF]->(c)`,
			map[string]any{"canonical": norm(g.Canonical), "variants": normAll(g.Variants)})
		if err != nil {
			return fmt.Errorf("write group %q: %w", g.Canonical, err)
		}
	}
	return nil
}

// withGroups returns a re-indexed copy of d with groups merged over its own.
func (d *Dictionary) withGroups(groups []SynonymGroup) *Dictionary {
	cp := Dictionary{
		StopWords:    d.StopWords,
		BudgetTokens: d.BudgetTokens,
		Theme:        d.Theme,
		Phrases:      append([]ProtectedPhrase(nil), d.Phrases...),
		Compounds:    append([]Compound(nil), d.Compounds...),
		CrossLinks:   append([]CrossLink(nil), d.CrossLinks...),
		Flowers:      append([]FlowerCategory(nil), d.Flowers...),
		Palettes:     append([]Palette(nil), d.Palettes...),
	}

	override := make(map[string]SynonymGroup, len(groups))
	for _, g := range groups {
		override[norm(g.Canonical)] = g
	}
	for _, g := range d.Synonyms {
		if o, ok := override[g.Canonical]; ok {
			cp.Synonyms = append(cp.Synonyms, o)
			delete(override, g.Canonical)
			continue
		}
		cp.Synonyms = append(cp.Synonyms, g)
	}
	for _, g := range groups {
		if o, ok := override[norm(g.Canonical)]; ok {
			cp.Synonyms = append(cp.Synonyms, o)
			delete(override, norm(g.Canonical))
		}
	}
	cp.index()
	return &cp
}
