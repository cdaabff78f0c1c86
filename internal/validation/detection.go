// Package validation implements ValidationPipeline: low-confidence
// detection against the threshold table, the reprocessing decision, and the
// periodic sampling audit.
package validation

import (
	"fmt"
	"time"

	"github.com/aurelienbran/docproc/internal/config"
	"github.com/aurelienbran/docproc/internal/docmodel"
)

// Detector classifies an Attempt's per-metric confidences into issues and
// builds the resulting ValidationReport.
type Detector struct {
	Thresholds config.ThresholdTable
}

// Detect builds a ValidationReport from one attempt's confidence scores.
func (d *Detector) Detect(taskID, attemptID string, attempt docmodel.Attempt) docmodel.ValidationReport {
	report := docmodel.ValidationReport{
		TaskID:           taskID,
		AttemptID:        attemptID,
		GlobalConfidence: attempt.OverallConfidence(),
		CreatedAt:        time.Now().UTC(),
	}

	for contentType, confidence := range attempt.Confidence {
		severity := docmodel.IssueSeverity(d.Thresholds.Classify(contentType, confidence))
		if severity == docmodel.IssueAcceptable {
			continue
		}
		report.Issues = append(report.Issues, docmodel.ContentIssue{
			Kind:        severity,
			ContentType: contentType,
			Confidence:  confidence,
			Description: fmt.Sprintf("%s confidence %.2f is %s", contentType, confidence, severity),
			Suggestions: suggestionsFor(contentType, severity),
		})
	}

	report.RequiresReprocessing = report.CountCritical() > 0 ||
		report.CountSevere() >= 3 ||
		report.GlobalConfidence < 0.5
	report.RequiresManualReview = report.HasCriticalFormulaOrSchema() ||
		report.GlobalConfidence < 0.3

	return report
}

// suggestionsFor gives natural-language remediation hints per content type,
// surfaced to a human reviewer or the next reprocessing attempt's engine
// choice.
func suggestionsFor(contentType string, severity docmodel.IssueSeverity) []string {
	switch contentType {
	case "formula":
		return []string{"retry with a math-aware OCR engine", "bump source DPI before re-extraction"}
	case "table":
		return []string{"retry with table-structure extraction enabled"}
	case "schema":
		return []string{"retry with a structured-layout-aware engine"}
	default:
		if severity == docmodel.IssueCritical {
			return []string{"switch OCR engine for the next attempt", "bump source DPI before re-extraction"}
		}
		return []string{"flag for manual spot-check"}
	}
}
