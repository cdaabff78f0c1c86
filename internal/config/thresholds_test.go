package config

import "testing"

func TestClassifyDefaultBands(t *testing.T) {
	table := DefaultThresholds()

	cases := []struct {
		contentType string
		confidence  float64
		want        string
	}{
		{"text", 0.9, "acceptable"},
		{"text", 0.6, "warning"},
		{"text", 0.4, "severe"},
		{"text", 0.1, "critical"},
		{"formula", 0.8, "acceptable"},
		{"unknown_type", 0.9, "acceptable"}, // falls back to text band
	}

	for _, c := range cases {
		got := table.Classify(c.contentType, c.confidence)
		if got != c.want {
			t.Errorf("Classify(%s, %v) = %s, want %s", c.contentType, c.confidence, got, c.want)
		}
	}
}

func TestLoadThresholdsMissingPathReturnsDefaults(t *testing.T) {
	table, err := LoadThresholds("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table["text"].Acceptable != 0.70 {
		t.Fatalf("expected default text band, got %+v", table["text"])
	}
}

func TestLoadThresholdsNonexistentFileFallsBack(t *testing.T) {
	table, err := LoadThresholds("/nonexistent/thresholds.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table["table"].Critical != 0.40 {
		t.Fatalf("expected default table band, got %+v", table["table"])
	}
}
