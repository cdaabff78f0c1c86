package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfidenceBand is one row of the low-confidence detection threshold table.
// A content type's score is classified against these three cutoffs.
type ConfidenceBand struct {
	Acceptable float64 `yaml:"acceptable"`
	Warning    float64 `yaml:"warning"`
	Critical   float64 `yaml:"critical"`
}

// ThresholdTable is keyed by content type: "text", "formula", "schema", "table".
type ThresholdTable map[string]ConfidenceBand

// DefaultThresholds mirrors the design-time defaults documented alongside
// the threshold table, used whenever no override file is configured.
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		"text":    {Acceptable: 0.70, Warning: 0.50, Critical: 0.30},
		"formula": {Acceptable: 0.75, Warning: 0.60, Critical: 0.40},
		"schema":  {Acceptable: 0.65, Warning: 0.50, Critical: 0.35},
		"table":   {Acceptable: 0.70, Warning: 0.55, Critical: 0.40},
	}
}

// LoadThresholds reads a ThresholdTable from a YAML file, falling back to
// DefaultThresholds when path is empty. Rows absent from the file fall back
// to their default band individually.
func LoadThresholds(path string) (ThresholdTable, error) {
	table := DefaultThresholds()
	if path == "" {
		return table, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return table, nil
		}
		return nil, fmt.Errorf("reading threshold table %s: %w", path, err)
	}
	var overrides ThresholdTable
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing threshold table %s: %w", path, err)
	}
	for contentType, band := range overrides {
		table[contentType] = band
	}
	return table, nil
}

// Classify returns the severity band a confidence score falls into for a
// content type.
func (t ThresholdTable) Classify(contentType string, confidence float64) string {
	band, ok := t[contentType]
	if !ok {
		band = DefaultThresholds()["text"]
	}
	switch {
	case confidence < band.Critical:
		return "critical"
	case confidence < band.Warning:
		return "severe"
	case confidence < band.Acceptable:
		return "warning"
	default:
		return "acceptable"
	}
}
