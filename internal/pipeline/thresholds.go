package pipeline

import (
	"strings"
	"unicode"
)

// Bounds are the acceptance bounds for one content category: similarity at
// or above Upper accepts outright, below Lower rejects outright, anything
// between defers to the judge.
type Bounds struct {
	Lower float64
	Upper float64
}

// CategoryPolicy maps a family of visual labels onto guardrail behavior.
// SkipSimilarity marks categories where embedding similarity is known to be
// unreliable (code, terminals, diagrams); those go straight to the judge.
type CategoryPolicy struct {
	Name           string
	Keywords       []string
	Bounds         Bounds
	SkipSimilarity bool
}

// ThresholdTable resolves a visual label to its category policy, with an
// explicit default for labels no category claims.
type ThresholdTable struct {
	Categories []CategoryPolicy
	Default    CategoryPolicy
}

// Resolve returns the first category whose keywords match the label, or the
// default. Keywords match whole words only, case-insensitively: "photograph"
// must not resolve through "graph", nor "client" through "cli".
func (t ThresholdTable) Resolve(label string) CategoryPolicy {
	normalized := normalizeLabel(label)
	for _, cat := range t.Categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(normalized, " "+kw+" ") {
				return cat
			}
		}
	}
	return t.Default
}

// normalizeLabel lowercases the label and collapses punctuation into word
// separators, padded with spaces so multi-word keywords ("command line")
// still match on word boundaries.
func normalizeLabel(label string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, label)
	return " " + strings.Join(strings.Fields(mapped), " ") + " "
}

// DefaultThresholds returns the built-in category table: low-fidelity
// content bypasses similarity entirely, other abstract content gets a low
// bar biased toward the judge, and photographic content gets a high bar.
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		Categories: []CategoryPolicy{
			{
				Name: "low-fidelity",
				Keywords: []string{
					"code", "script", "function", "ide", "editor",
					"terminal", "console", "cli", "command line",
					"diagram", "uml", "flowchart", "schema",
				},
				Bounds:         Bounds{Lower: 0.20, Upper: 0.50},
				SkipSimilarity: true,
			},
			{
				Name: "abstract",
				Keywords: []string{
					"equation", "formula", "math", "graph", "chart", "table",
					"spreadsheet", "ui", "interface", "layout", "wireframe",
					"whiteboard", "slide", "presentation", "text", "document",
				},
				Bounds: Bounds{Lower: 0.20, Upper: 0.50},
			},
		},
		Default: CategoryPolicy{
			Name:   "photographic",
			Bounds: Bounds{Lower: 0.40, Upper: 0.75},
		},
	}
}
