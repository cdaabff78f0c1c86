// Package selector implements OCRSelector: a pure decision table
// over document metrics and available engines, producing a ranked engine
// preference list. It holds no state and calls out to nothing.
package selector

import (
	"sort"
	"time"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// Thresholds bundles the decision table's tunable cutoffs, kept separate
// from the pure classification function so callers can override them
// without touching the logic.
type Thresholds struct {
	TextDensityMin   float64
	ImageDensityMax  float64
	ContrastMin      float64
	SharpnessMin     float64
	EdgeDensityMax   float64
}

// DefaultThresholds mirrors the design-time defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TextDensityMin:  0.01,
		ImageDensityMax: 0.1,
		ContrastMin:     0.4,
		SharpnessMin:    0.4,
		EdgeDensityMax:  0.6,
	}
}

// Classify tags a document's complexity from its metrics. A "plain text" MIME type never reaches this point — callers
// should check NeedsOCR first.
func Classify(m docmodel.DocumentMetrics, t Thresholds) docmodel.Complexity {
	var complexity docmodel.Complexity

	switch {
	case m.MIMEType == "application/pdf" && m.HasText && m.TextDensity > t.TextDensityMin && m.ImageDensity < t.ImageDensityMax:
		complexity = docmodel.ComplexitySimple
	case isImage(m.MIMEType) && (m.Contrast < t.ContrastMin || m.Sharpness < t.SharpnessMin):
		complexity = docmodel.ComplexityDamaged
	case isImage(m.MIMEType) && m.EdgeDensity > t.EdgeDensityMax:
		complexity = docmodel.ComplexityTechnical
	case !m.HasText && m.ImageDensity >= t.ImageDensityMax:
		complexity = docmodel.ComplexityComplex
	default:
		complexity = docmodel.ComplexityMedium
	}

	if m.HasTableContours {
		complexity = bumpOneLevel(complexity)
	}
	return complexity
}

// NeedsOCR reports whether a document requires any OCR pass at all.
func NeedsOCR(m docmodel.DocumentMetrics) bool {
	return m.MIMEType != "text/plain"
}

func isImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/tiff", "image/bmp":
		return true
	default:
		return false
	}
}

// complexityOrder ranks complexity from least to most demanding, used to
// "bump one level up" per the table entry for detected table contours.
var complexityOrder = []docmodel.Complexity{
	docmodel.ComplexitySimple,
	docmodel.ComplexityMedium,
	docmodel.ComplexityComplex,
	docmodel.ComplexityTechnical,
	docmodel.ComplexityHandwritten,
	docmodel.ComplexityDamaged,
}

func bumpOneLevel(c docmodel.Complexity) docmodel.Complexity {
	for i, candidate := range complexityOrder {
		if candidate == c && i+1 < len(complexityOrder) {
			return complexityOrder[i+1]
		}
	}
	return c
}

// enginePreferenceTable is the design-time mapping from complexity tag to
// the engines preferred for it, fastest-appropriate first.
var enginePreferenceTable = map[docmodel.Complexity][]string{
	docmodel.ComplexitySimple:      {"legacy_http", "genai"},
	docmodel.ComplexityMedium:      {"genai", "legacy_http"},
	docmodel.ComplexityComplex:     {"genai"},
	docmodel.ComplexityTechnical:   {"genai"},
	docmodel.ComplexityHandwritten: {"genai"},
	docmodel.ComplexityDamaged:     {"genai"},
}

// estimatedCostPerPage is the per-engine cost baseline used to populate
// EstimatedCost, scaled by page count.
var estimatedCostPerPage = map[string]time.Duration{
	"legacy_http": 500 * time.Millisecond,
	"genai":       1200 * time.Millisecond,
}

// Select produces the ranked EnginePreference list for a document.
// available restricts the table to engines actually wired up; strategy is
// "speed" or "accuracy" per TaskOptions.PreferredStrategy.
func Select(m docmodel.DocumentMetrics, available []string, strategy string, t Thresholds) []docmodel.EnginePreference {
	if !NeedsOCR(m) {
		return nil
	}

	complexity := Classify(m, t)
	ranked := enginePreferenceTable[complexity]

	availableSet := make(map[string]bool, len(available))
	for _, name := range available {
		availableSet[name] = true
	}

	pages := m.PageCount
	if pages == 0 {
		pages = 1
	}

	var prefs []docmodel.EnginePreference
	for _, name := range ranked {
		if !availableSet[name] {
			continue
		}
		cost := estimatedCostPerPage[name] * time.Duration(pages)
		prefs = append(prefs, docmodel.EnginePreference{Engine: name, EstimatedCost: cost})
	}
	// Any available engine the table doesn't rank at all is appended last,
	// so a deployment with a single configured engine always gets a result.
	for _, name := range available {
		found := false
		for _, p := range prefs {
			if p.Engine == name {
				found = true
				break
			}
		}
		if !found {
			prefs = append(prefs, docmodel.EnginePreference{
				Engine:        name,
				EstimatedCost: estimatedCostPerPage[name] * time.Duration(pages),
			})
		}
	}

	if strategy == "speed" {
		sort.SliceStable(prefs, func(i, j int) bool {
			return prefs[i].EstimatedCost < prefs[j].EstimatedCost
		})
	}
	// "accuracy" (and the default) preserves the complexity-mapped order.
	return prefs
}
