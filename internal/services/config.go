package services

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Lllllllleong/rfpworkbench/internal/gcp"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// Processor backends selectable through PROCESSOR_BACKEND.
const (
	BackendCanned   = "canned"
	BackendVertex   = "vertex"
	BackendWorkflow = "workflow"
)

// defaultMaxUploadBytes caps uploads at 10 MiB.
const defaultMaxUploadBytes = 10 << 20

// Config holds all configuration for the workbench.
type Config struct {
	ProjectID      string
	VertexAIRegion string
	VertexModel    string

	UploadBucket             string
	ExportBucket             string
	SplitPagesBucket         string
	TranslatedMarkdownBucket string

	WorkflowID       string
	WorkflowLocation string

	// StatusCollection is the Firestore collection for stage run statuses.
	// Recording is off when it is empty or ProjectID is unset.
	StatusCollection string

	Backend        string
	CannedDelay    time.Duration
	SyncPolicy     pipeline.SyncPolicy
	MaxUploadBytes int64
}

// LoadConfig loads and validates the environment for the selected backend.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ProjectID:                gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion:           gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexModel:              gcp.GetEnv("VERTEX_MODEL", gcp.DefaultModel),
		UploadBucket:             gcp.GetEnv("UPLOAD_BUCKET", ""),
		ExportBucket:             gcp.GetEnv("EXPORT_BUCKET", ""),
		SplitPagesBucket:         gcp.GetEnv("SPLIT_PAGES_BUCKET", ""),
		TranslatedMarkdownBucket: gcp.GetEnv("TRANSLATED_MARKDOWN_BUCKET", ""),
		WorkflowID:               gcp.GetEnv("WORKFLOW_ID", "document-processing-orchestrator"),
		WorkflowLocation:         gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		StatusCollection:         gcp.GetEnv("FIRESTORE_COLLECTION", "pipeline_runs"),
		Backend:                  gcp.GetEnv("PROCESSOR_BACKEND", BackendCanned),
		MaxUploadBytes:           defaultMaxUploadBytes,
	}

	if cfg.UploadBucket == "" {
		return nil, fmt.Errorf("UPLOAD_BUCKET environment variable must be set")
	}

	policy, err := pipeline.ParseSyncPolicy(gcp.GetEnv("HISTORY_SYNC", ""))
	if err != nil {
		return nil, fmt.Errorf("HISTORY_SYNC: %w", err)
	}
	cfg.SyncPolicy = policy

	if raw := gcp.GetEnv("CANNED_DELAY", ""); raw != "" {
		delay, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("CANNED_DELAY: %w", err)
		}
		cfg.CannedDelay = delay
	}

	if raw := gcp.GetEnv("MAX_UPLOAD_BYTES", ""); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be a positive integer, got %q", raw)
		}
		cfg.MaxUploadBytes = n
	}

	switch cfg.Backend {
	case BackendCanned:
	case BackendVertex:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
		}
	case BackendWorkflow:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
		}
		if cfg.SplitPagesBucket == "" || cfg.TranslatedMarkdownBucket == "" {
			return nil, fmt.Errorf("SPLIT_PAGES_BUCKET and TRANSLATED_MARKDOWN_BUCKET must be set")
		}
	default:
		return nil, fmt.Errorf("unknown PROCESSOR_BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}

// StatusRecordingEnabled reports whether stage runs are recorded in Firestore.
func (c *Config) StatusRecordingEnabled() bool {
	return c.ProjectID != "" && c.StatusCollection != ""
}

// PageWorkerConfig holds configuration for the page-translator function the
// document-processing workflow calls.
type PageWorkerConfig struct {
	ProjectID      string
	VertexAIRegion string
	VertexModel    string
	MarkdownBucket string
}

// LoadPageWorkerConfig loads and validates the page worker's environment.
func LoadPageWorkerConfig() (*PageWorkerConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	markdownBucket := gcp.GetEnv("TRANSLATED_MARKDOWN_BUCKET", "")
	if markdownBucket == "" {
		return nil, fmt.Errorf("TRANSLATED_MARKDOWN_BUCKET environment variable must be set")
	}
	return &PageWorkerConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexModel:    gcp.GetEnv("VERTEX_MODEL", gcp.DefaultModel),
		MarkdownBucket: markdownBucket,
	}, nil
}
