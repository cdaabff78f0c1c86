package docmodel

import "time"

// EventKind enumerates the NotificationHub event types.
type EventKind string

const (
	EventTaskCreated       EventKind = "TaskCreated"
	EventTaskStateChanged  EventKind = "TaskStateChanged"
	EventTaskProgress      EventKind = "TaskProgress"
	EventCheckpointCreated EventKind = "CheckpointCreated"
	EventErrorRegistered   EventKind = "ErrorRegistered"
	EventTaskDeleted       EventKind = "TaskDeleted"
)

// Event is one NotificationHub message.
type Event struct {
	TaskID    string      `json:"task_id"`
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StateChangePayload backs EventTaskStateChanged.
type StateChangePayload struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// ProgressPayload backs EventTaskProgress.
type ProgressPayload struct {
	Fraction    float64 `json:"fraction"`
	CurrentPage int     `json:"current_page"`
	TotalPages  int     `json:"total_pages"`
}

// ErrorPayload backs EventErrorRegistered.
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}
