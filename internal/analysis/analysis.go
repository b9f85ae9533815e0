// Package analysis asks an LLM to read a gift request and return structured
// hints: occasion theme, gift type, colours, budget and extra keywords.
// The hints are advisory. Every failure degrades to "no analysis".
package analysis

import "strings"

// Analysis is the structured reading of a query. Empty fields mean the model
// had nothing to say about them.
type Analysis struct {
	Theme           string   `json:"theme,omitempty"`
	Type            string   `json:"type,omitempty"`
	Colors          []string `json:"colors,omitempty"`
	Budget          *string  `json:"budget,omitempty"`
	SpecialRequests []string `json:"special_requests,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// IsEmpty reports whether a carries no usable hint.
func (a *Analysis) IsEmpty() bool {
	if a == nil {
		return true
	}
	return strings.TrimSpace(a.Theme) == "" &&
		strings.TrimSpace(a.Type) == "" &&
		len(a.Colors) == 0 &&
		(a.Budget == nil || strings.TrimSpace(*a.Budget) == "") &&
		len(a.SpecialRequests) == 0 &&
		len(a.Keywords) == 0
}
