package audit

import "time"

// EventType enumerates everything the core is required to leave a trail for:
// every evaluation, every scheme-version read, every write of a personal
// field, and every review decision produce exactly one event.
type EventType string

const (
	EventSessionStarted    EventType = "session_started"
	EventSessionRestored   EventType = "session_restored"
	EventSessionAbandoned  EventType = "session_abandoned"
	EventSessionCompleted  EventType = "session_completed"
	EventSessionDeleted    EventType = "session_deleted"
	EventFieldRecorded     EventType = "field_recorded"
	EventDataAccessed      EventType = "data_accessed"
	EventSchemeVersionRead EventType = "scheme_version_read"
	EventEvaluationDone    EventType = "evaluation_completed"
	EventReviewCaseCreated EventType = "review_case_created"
	EventReviewDecided     EventType = "review_decision_recorded"
	EventSchemeVersionPut  EventType = "scheme_version_created"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	SchemeID  string            `json:"scheme_id,omitempty"`
	Version   int               `json:"version,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
