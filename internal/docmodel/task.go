// Package docmodel defines the durable entities of the document-processing
// pipeline: Task, Attempt, Checkpoint, Chunk, ContentIssue, ValidationReport
// and TextChunk, per the data model.
package docmodel

import "time"

// Priority orders Tasks for dispatch. Critical precedes High precedes Normal
// precedes Low precedes Background, regardless of enqueue order.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// ParsePriority accepts the external string form of a Priority.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "critical":
		return PriorityCritical, true
	case "high":
		return PriorityHigh, true
	case "normal", "":
		return PriorityNormal, true
	case "low":
		return PriorityLow, true
	case "background":
		return PriorityBackground, true
	default:
		return 0, false
	}
}

// Status is a Task's position in its state machine.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusPreprocessing  Status = "preprocessing"
	StatusProcessing     Status = "processing"
	StatusPaused         Status = "paused"
	StatusWaitingForPool Status = "waiting_for_resources"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
	StatusManualReview   Status = "manual_validation"
)

// Terminal reports whether the status is immutable thereafter.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusManualReview:
		return true
	default:
		return false
	}
}

// allowedTransitions enumerates the edges of the task state diagram. A
// transition not listed here is rejected by the orchestrator's
// Facade.transition and by store.Store.PutTask.
var allowedTransitions = map[Status][]Status{
	"":                   {StatusQueued},
	StatusQueued:         {StatusPreprocessing, StatusPaused, StatusCancelled},
	StatusPreprocessing:  {StatusProcessing, StatusPaused, StatusCancelled, StatusFailed},
	StatusProcessing:     {StatusCompleted, StatusFailed, StatusPaused, StatusCancelled, StatusManualReview, StatusWaitingForPool},
	StatusWaitingForPool: {StatusProcessing, StatusPaused, StatusCancelled},
	StatusPaused:         {StatusQueued, StatusCancelled},
}

// CanTransition reports whether from->to is an allowed edge of the state
// machine.
func CanTransition(from, to Status) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TaskOptions is the enumerated options record for Enqueue. A raw options
// bag with unknown keys is rejected by config.ValidateTaskOptionsJSON
// (internal/config/optionsschema.go); Enqueue takes this struct as built and
// does not call that validator.
type TaskOptions struct {
	OCREngine          string            `json:"ocr_engine"` // "auto" or an explicit engine name
	Language           string            `json:"language"`
	ChunkSize          int               `json:"chunk_size"`
	ExtractTables      bool              `json:"extract_tables"`
	ExtractImages      bool              `json:"extract_images"`
	PreferredStrategy  string            `json:"preferred_strategy"` // "speed" | "accuracy"
	ClientMetadata     map[string]string `json:"-"`
}

// DefaultTaskOptions mirrors the submission API's documented defaults.
func DefaultTaskOptions() TaskOptions {
	return TaskOptions{
		OCREngine: "auto",
		Language:  "fra",
		ChunkSize: 5,
	}
}

// Attempt is one execution pass of a Task.
type Attempt struct {
	ID           string            `bson:"_id" json:"id"`
	TaskID       string            `bson:"task_id" json:"task_id"`
	Index        int               `bson:"index" json:"index"` // 0-based attempt ordinal
	EngineChain  []string          `bson:"engine_chain" json:"engine_chain"`
	EngineParams map[string]string `bson:"engine_params" json:"engine_params"`
	Success      bool              `bson:"success" json:"success"`
	Confidence   map[string]float64 `bson:"confidence" json:"confidence"` // metric name -> confidence
	PagesProcessed int             `bson:"pages_processed" json:"pages_processed"`
	ProcessingTime time.Duration   `bson:"processing_time" json:"processing_time"`
	StartedAt    time.Time         `bson:"started_at" json:"started_at"`
	CompletedAt  *time.Time        `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	Terminal     bool              `bson:"terminal" json:"terminal"`
}

// OverallConfidence is the mean of all recorded per-metric confidences.
func (a Attempt) OverallConfidence() float64 {
	if len(a.Confidence) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range a.Confidence {
		total += v
	}
	return total / float64(len(a.Confidence))
}

// AttemptError is one entry of a Task's append-only error list.
type AttemptError struct {
	TaskID    string    `bson:"task_id" json:"task_id"`
	AttemptID string    `bson:"attempt_id" json:"attempt_id"`
	Kind      ErrorKind `bson:"kind" json:"kind"`
	Message   string    `bson:"message" json:"message"`
	Retryable bool      `bson:"retryable" json:"retryable"`
	At        time.Time `bson:"at" json:"at"`
}

// ErrorKind is the closed set of attempt-level failure classifications.
type ErrorKind string

const (
	ErrorSystem     ErrorKind = "system"
	ErrorTimeout    ErrorKind = "timeout"
	ErrorValidation ErrorKind = "validation"
	ErrorOCR        ErrorKind = "ocr"
	ErrorNetwork    ErrorKind = "network"
	ErrorUnknown    ErrorKind = "unknown"
)

// Recoverable reports whether RetrySupervisor should retry an error of this
// kind. System errors are recoverable only when flagged transient by
// the caller; this method assumes the transient case, and the retry
// package checks the error's Classifiable.Transient flag separately.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case ErrorTimeout, ErrorNetwork, ErrorOCR, ErrorUnknown, ErrorSystem:
		return true
	case ErrorValidation:
		return false
	default:
		return false
	}
}

// Checkpoint is the resumable state of an attempt.
type Checkpoint struct {
	TaskID      string    `bson:"task_id" json:"task_id"`
	AttemptID   string    `bson:"attempt_id" json:"attempt_id"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
	State       []byte    `bson:"state" json:"state"` // opaque, owned by ChunkedProcessor
	CurrentPage int       `bson:"current_page" json:"current_page"`
	TotalPages  int       `bson:"total_pages" json:"total_pages"`
	Progress    float64   `bson:"progress" json:"progress"`
}

// Task is the unit of work.
type Task struct {
	ID             string            `bson:"_id" json:"id"`
	InputPath      string            `bson:"input_path" json:"input_path"`
	OutputPath     string            `bson:"output_path,omitempty" json:"output_path,omitempty"`
	Options        TaskOptions       `bson:"options" json:"options"`
	ClientMetadata map[string]string `bson:"client_metadata,omitempty" json:"client_metadata,omitempty"`

	Priority Priority  `bson:"priority" json:"priority"`
	AddedAt  time.Time `bson:"added_at" json:"added_at"`

	Status      Status     `bson:"status" json:"status"`
	Progress    float64    `bson:"progress" json:"progress"`
	CurrentPage int        `bson:"current_page" json:"current_page"`
	TotalPages  int        `bson:"total_pages" json:"total_pages"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`

	Attempts      []string      `bson:"attempts" json:"attempts"` // attempt ids, append-only
	LastError     *AttemptError `bson:"last_error,omitempty" json:"last_error,omitempty"`
	BestAttemptID string        `bson:"best_attempt_id,omitempty" json:"best_attempt_id,omitempty"`

	SchemaVersion int `bson:"schema_version" json:"-"`
}

// CurrentSchemaVersion tags newly constructed Tasks for forward-compatible
// decoding, the way models.PDF and models.AuditEvent version their documents
// in the teacher without a migration framework.
const CurrentSchemaVersion = 1

// Immutable reports whether the Task may no longer be mutated.
func (t Task) Immutable() bool {
	return t.Status.Terminal()
}

// Chunk is a page range of a document split out for parallel OCR.
type Chunk struct {
	TaskID     string `bson:"task_id" json:"task_id"`
	AttemptID  string `bson:"attempt_id" json:"attempt_id"`
	Index      int    `bson:"index" json:"index"`
	SourcePath string `bson:"source_path" json:"source_path"`
	OutputPath string `bson:"output_path,omitempty" json:"output_path,omitempty"`
	StartPage  int    `bson:"start_page" json:"start_page"` // inclusive, 0-based
	EndPage    int    `bson:"end_page" json:"end_page"`     // inclusive
	Processed  bool   `bson:"processed" json:"processed"`
	Text       string `bson:"text,omitempty" json:"-"`
	Confidence float64 `bson:"confidence,omitempty" json:"confidence,omitempty"`
	Error      string `bson:"error,omitempty" json:"error,omitempty"`
}

// PageCount returns the number of pages this chunk covers.
func (c Chunk) PageCount() int {
	if c.EndPage < c.StartPage {
		return 0
	}
	return c.EndPage - c.StartPage + 1
}
