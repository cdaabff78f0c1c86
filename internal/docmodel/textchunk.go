package docmodel

import "time"

// StructuralElement is a structurally-detected named reference inside the
// source text: "figure 3", "tableau 2", "équation 1", etc.
type StructuralElement struct {
	Type    string `bson:"type" json:"type"` // "figure" | "table" | "equation" | "section"
	ID      string `bson:"id" json:"id"`     // stable id, e.g. "figure_3"
	Offset  int    `bson:"offset" json:"offset"`
	Context string `bson:"context" json:"context"`
}

// RelationKind enumerates the edge types RelationalChunker can produce.
type RelationKind string

const (
	RelationPrevious  RelationKind = "previous"
	RelationNext      RelationKind = "next"
	RelationSemantic  RelationKind = "semantic_similarity"
	RelationSharedRef RelationKind = "shared_reference" // shared_<element-type> in the text form
)

// Relation is one edge of the chunk adjacency graph. Edges name their target
// by its chunk ID (TargetID), never by a direct pointer, so a cyclic graph
// serializes cleanly.
type Relation struct {
	Kind     RelationKind `bson:"kind" json:"kind"`
	TargetID string       `bson:"target_id" json:"target_id"`
	Strength float64      `bson:"strength" json:"strength"`
	// RefType is populated for RelationSharedRef, naming the shared
	// structural element type (e.g. "figure").
	RefType string `bson:"ref_type,omitempty" json:"ref_type,omitempty"`
}

// ChunkMetadata is the enrichment computed for each TextChunk.
type ChunkMetadata struct {
	CharCount       int                 `bson:"char_count" json:"char_count"`
	WordCount       int                 `bson:"word_count" json:"word_count"`
	SentenceCount   int                 `bson:"sentence_count" json:"sentence_count"`
	LexicalDiversity float64            `bson:"lexical_diversity" json:"lexical_diversity"`
	KeyTerms        []string            `bson:"key_terms" json:"key_terms"`
	TokenCount      int                 `bson:"token_count" json:"token_count"`
	StructuralRefs  []StructuralElement `bson:"structural_refs,omitempty" json:"structural_refs,omitempty"`
	HasEmbedding    bool                `bson:"has_embedding" json:"has_embedding"`
	Language        string              `bson:"language,omitempty" json:"language,omitempty"`
}

// TextChunk is a post-chunking output unit ready for indexing.
type TextChunk struct {
	ID        string        `bson:"_id" json:"id"` // stable content hash
	RunID     string        `bson:"run_id" json:"run_id"` // the processing run chunks may relate within
	Text      string        `bson:"text" json:"text"`
	Position  int           `bson:"position" json:"position"`
	Metadata  ChunkMetadata `bson:"metadata" json:"metadata"`
	Relations []Relation    `bson:"relations,omitempty" json:"relations,omitempty"`
}

// ContentIssue is a detected quality defect.
type ContentIssue struct {
	Kind        IssueSeverity `bson:"kind" json:"kind"`
	ContentType string        `bson:"content_type" json:"content_type"` // "text"|"formula"|"schema"|"table"
	Page        int           `bson:"page" json:"page"`
	Confidence  float64       `bson:"confidence" json:"confidence"`
	Description string        `bson:"description" json:"description"`
	Excerpt     string        `bson:"excerpt" json:"excerpt"`
	Suggestions []string      `bson:"suggestions" json:"suggestions"`
}

// IssueSeverity classifies a ContentIssue against the threshold table.
type IssueSeverity string

const (
	IssueAcceptable IssueSeverity = "acceptable"
	IssueWarning    IssueSeverity = "warning"
	IssueSevere     IssueSeverity = "severe"
	IssueCritical   IssueSeverity = "critical"
)

// ValidationReport is the output of the low-confidence detection subphase.
type ValidationReport struct {
	TaskID              string         `bson:"task_id" json:"task_id"`
	AttemptID           string         `bson:"attempt_id" json:"attempt_id"`
	Issues              []ContentIssue `bson:"issues" json:"issues"`
	GlobalConfidence    float64        `bson:"global_confidence" json:"global_confidence"`
	RequiresReprocessing bool          `bson:"requires_reprocessing" json:"requires_reprocessing"`
	RequiresManualReview bool          `bson:"requires_manual_review" json:"requires_manual_review"`
	CreatedAt           time.Time      `bson:"created_at" json:"created_at"`
}

// CountSevere returns the number of issues at severe or critical severity.
func (r ValidationReport) CountSevere() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == IssueSevere || issue.Kind == IssueCritical {
			n++
		}
	}
	return n
}

// CountCritical returns the number of critical issues.
func (r ValidationReport) CountCritical() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == IssueCritical {
			n++
		}
	}
	return n
}

// HasCriticalFormulaOrSchema reports whether a critical issue exists against
// a formula or schema content type.
func (r ValidationReport) HasCriticalFormulaOrSchema() bool {
	for _, issue := range r.Issues {
		if issue.Kind == IssueCritical && (issue.ContentType == "formula" || issue.ContentType == "schema") {
			return true
		}
	}
	return false
}

// SampleRecord is one audited document in a sampling-audit run.
type SampleRecord struct {
	TaskID           string    `bson:"task_id" json:"task_id"`
	Engine           string    `bson:"engine" json:"engine"`
	DocumentType     string    `bson:"document_type" json:"document_type"`
	Confidence       float64   `bson:"confidence" json:"confidence"`
	Reprocessed      bool      `bson:"reprocessed" json:"reprocessed"`
	ErrorKinds       []string  `bson:"error_kinds,omitempty" json:"error_kinds,omitempty"`
	IssueDescriptions []string `bson:"issue_descriptions,omitempty" json:"issue_descriptions,omitempty"`
	ProcessedAt      time.Time `bson:"processed_at" json:"processed_at"`
}

// SamplingReport aggregates statistics over a drawn sample.
type SamplingReport struct {
	ID                string         `bson:"_id" json:"id"`
	Strategy          string         `bson:"strategy" json:"strategy"`
	SampleSize        int            `bson:"sample_size" json:"sample_size"`
	MeanConfidence    float64        `bson:"mean_confidence" json:"mean_confidence"`
	MedianConfidence  float64        `bson:"median_confidence" json:"median_confidence"`
	ByEngine          map[string]float64 `bson:"by_engine" json:"by_engine"`
	ReprocessingRate  float64        `bson:"reprocessing_rate" json:"reprocessing_rate"`
	ErrorHistogram    map[string]int `bson:"error_histogram" json:"error_histogram"`
	RecurringTerms    []string       `bson:"recurring_terms" json:"recurring_terms"`
	Recommendations   []string       `bson:"recommendations" json:"recommendations"`
	CreatedAt         time.Time      `bson:"created_at" json:"created_at"`
}
