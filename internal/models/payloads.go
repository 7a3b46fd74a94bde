package models

import "github.com/Lllllllleong/rfpworkbench/internal/pipeline"

// These structs define the JSON payloads for HTTP requests and responses
// served by the Workbench function.

// UploadResponse is returned after a document has been stored and added to
// the history.
type UploadResponse struct {
	DocumentID string           `json:"documentId"`
	File       pipeline.FileRef `json:"file"`
}

// HistoryResponse lists the history, most recent first.
type HistoryResponse struct {
	Documents []pipeline.Summary `json:"documents"`
	CurrentID string             `json:"currentId,omitempty"`
	Capacity  int                `json:"capacity"`
}

// SelectRequest is the input for POST /select.
type SelectRequest struct {
	DocumentID string `json:"documentId"`
}

// SessionResponse is the current document and everything produced for it.
type SessionResponse struct {
	DocumentID string `json:"documentId,omitempty"`
	pipeline.Snapshot
	InFlight   []string `json:"inFlight,omitempty"`
	SyncPolicy string   `json:"syncPolicy"`
}

// StageResponse answers whether a stage may be entered and where to go if not.
type StageResponse struct {
	Stage    string `json:"stage"`
	CanEnter bool   `json:"canEnter"`
	Redirect string `json:"redirect"`
	InFlight bool   `json:"inFlight"`
}

// RunResponse carries the output of a finished stage run.
type RunResponse struct {
	DocumentID string `json:"documentId"`
	Stage      string `json:"stage"`
	Output     any    `json:"output"`
}

// TranslationRequest overwrites the current translation.
type TranslationRequest struct {
	Text string `json:"text"`
}

// FeaturesRequest overwrites the current feature list.
type FeaturesRequest struct {
	Items []string `json:"items"`
}

// ScopeRequest overwrites the current scope of work.
type ScopeRequest struct {
	Markdown string `json:"markdown"`
}

// PublishResponse lists the exports written to the export bucket, keyed by
// file name.
type PublishResponse struct {
	DocumentID string            `json:"documentId"`
	Exports    map[string]string `json:"exports"`
}

// ErrorResponse is the body of every non-2xx response. Redirect is set when a
// stage guard refused entry.
type ErrorResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// GCSEvent is the payload of a GCS object-finalized CloudEvent.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// PageTranslatorRequest is sent by the document-processing workflow for each
// split page.
type PageTranslatorRequest struct {
	DocumentID  string `json:"documentId"`
	PageNumber  int    `json:"pageNumber"`
	GCSUri      string `json:"gcsUri"`
	ExecutionID string `json:"executionId"`
}

// PageTranslatorResponse tells the workflow where the page's markdown went.
type PageTranslatorResponse struct {
	Status       string `json:"status"`
	OutputGCSUri string `json:"outputGcsUri"`
}
