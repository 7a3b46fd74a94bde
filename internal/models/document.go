package models

import "time"

// Stage run statuses written to Firestore.
const (
	StatusRunning    = "RUNNING"
	StatusComplete   = "COMPLETE"
	StatusFailed     = "FAILED"
	StatusSuperseded = "SUPERSEDED"
)

// StageRun is the Firestore record of the latest invocation of one stage for
// one document. It is an audit trail only; the workbench never reads it back.
type StageRun struct {
	DocumentID   string    `firestore:"documentId,omitempty"`
	Stage        string    `firestore:"stage,omitempty"`
	Status       string    `firestore:"status,omitempty"`
	ErrorDetails string    `firestore:"errorDetails,omitempty"`
	StartedAt    time.Time `firestore:"startedAt,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt,omitempty"`
}
