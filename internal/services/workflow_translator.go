package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"

	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// executionsAPI is the part of *executions.Client the workflow translator uses.
type executionsAPI interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
	GetExecution(ctx context.Context, req *executionspb.GetExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
	CancelExecution(ctx context.Context, req *executionspb.CancelExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
}

// pageSplitter is implemented by *PageSplitter.
type pageSplitter interface {
	Split(ctx context.Context, file pipeline.FileRef, docKey string) (int, error)
}

// WorkflowTranslatorConfig holds configuration for the workflow backend.
type WorkflowTranslatorConfig struct {
	ProjectID                string
	WorkflowLocation         string
	WorkflowID               string
	TranslatedMarkdownBucket string
	PollInterval             time.Duration
	MaxPollInterval          time.Duration
}

// WorkflowTranslator translates by running the document-processing Cloud
// Workflow: the document is split into pages, the workflow translates every
// page into the translated-markdown bucket, and the pages are stitched back
// together once the execution succeeds.
type WorkflowTranslator struct {
	splitter   pageSplitter
	executions executionsAPI
	blobs      BlobStore
	config     WorkflowTranslatorConfig
	newKey     func() string
	log        *slog.Logger
}

// NewWorkflowTranslator wires the translator's collaborators.
func NewWorkflowTranslator(splitter *PageSplitter, executions executionsAPI, blobs BlobStore, config WorkflowTranslatorConfig, logger *slog.Logger) *WorkflowTranslator {
	return newWorkflowTranslator(splitter, executions, blobs, config, logger)
}

func newWorkflowTranslator(splitter pageSplitter, executions executionsAPI, blobs BlobStore, config WorkflowTranslatorConfig, logger *slog.Logger) *WorkflowTranslator {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.MaxPollInterval < config.PollInterval {
		config.MaxPollInterval = 30 * time.Second
	}
	return &WorkflowTranslator{
		splitter:   splitter,
		executions: executions,
		blobs:      blobs,
		config:     config,
		newKey:     uuid.NewString,
		log:        logger,
	}
}

// workflowResult is the subset of the workflow's JSON result we read.
type workflowResult struct {
	CleanedGCSUri string `json:"cleanedGcsUri"`
}

// Translate implements pipeline.Translator.
func (w *WorkflowTranslator) Translate(ctx context.Context, file pipeline.FileRef) (pipeline.TranslationOutput, error) {
	docKey := w.newKey()
	logCtx := w.log.With("fileUri", file.URI, "documentKey", docKey, "stage", pipeline.StageTranslate.String())

	pageCount, err := w.splitter.Split(ctx, file, docKey)
	if err != nil {
		return pipeline.TranslationOutput{}, fmt.Errorf("failed to split document: %w", err)
	}

	execution, err := w.trigger(ctx, docKey, pageCount)
	if err != nil {
		logCtx.Error("Failed to trigger workflow execution", "error", err)
		return pipeline.TranslationOutput{}, err
	}
	logCtx = logCtx.With("execution", execution.GetName())
	logCtx.Info("Workflow execution started.", "pageCount", pageCount)

	finished, err := w.await(ctx, execution.GetName())
	if err != nil {
		if ctx.Err() != nil {
			w.cancel(ctx, logCtx, execution.GetName())
		}
		logCtx.Error("Workflow execution did not succeed", "error", err)
		return pipeline.TranslationOutput{}, err
	}

	markdown, err := w.collect(ctx, finished, docKey)
	if err != nil {
		logCtx.Error("Failed to collect translated markdown", "error", err)
		return pipeline.TranslationOutput{}, err
	}
	logCtx.Info("Workflow translation complete.", "chars", len(markdown))
	return pipeline.TranslationOutput{Text: markdown}, nil
}

func (w *WorkflowTranslator) trigger(ctx context.Context, docKey string, pageCount int) (*executionspb.Execution, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"documentId": docKey,
		"pageCount":  pageCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", w.config.ProjectID, w.config.WorkflowLocation, w.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	execution, err := w.executions.CreateExecution(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return execution, nil
}

// await polls the execution with a doubling interval until it leaves the
// queued and active states.
func (w *WorkflowTranslator) await(ctx context.Context, name string) (*executionspb.Execution, error) {
	interval := w.config.PollInterval
	for {
		execution, err := w.executions.GetExecution(ctx, &executionspb.GetExecutionRequest{Name: name})
		if err != nil {
			return nil, fmt.Errorf("failed to poll workflow execution: %w", err)
		}
		switch execution.GetState() {
		case executionspb.Execution_SUCCEEDED:
			return execution, nil
		case executionspb.Execution_ACTIVE, executionspb.Execution_QUEUED, executionspb.Execution_STATE_UNSPECIFIED:
		default:
			return nil, fmt.Errorf("workflow execution ended in state %s: %s", execution.GetState(), execution.GetError().GetPayload())
		}

		select {
		case <-time.After(interval):
			interval = min(interval*2, w.config.MaxPollInterval)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// collect prefers the cleaned master document when the workflow reports one
// and falls back to stitching the translated pages.
func (w *WorkflowTranslator) collect(ctx context.Context, execution *executionspb.Execution, docKey string) (string, error) {
	var result workflowResult
	if raw := execution.GetResult(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			w.log.Warn("Workflow result is not the expected JSON; stitching pages instead.", "error", err)
		}
	}
	if result.CleanedGCSUri != "" {
		data, err := w.blobs.Read(ctx, result.CleanedGCSUri)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	markdown, pages, err := aggregateMarkdown(ctx, w.blobs, w.config.TranslatedMarkdownBucket, docKey+"/")
	if err != nil {
		return "", err
	}
	if pages == 0 {
		return "", fmt.Errorf("workflow produced no translated pages for %s", docKey)
	}
	return markdown, nil
}

// cancel stops an execution whose caller is gone. It runs on a context
// detached from the cancelled one.
func (w *WorkflowTranslator) cancel(ctx context.Context, logCtx *slog.Logger, name string) {
	cancelCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer done()
	if _, err := w.executions.CancelExecution(cancelCtx, &executionspb.CancelExecutionRequest{Name: name}); err != nil {
		logCtx.Warn("Failed to cancel abandoned workflow execution.", "error", err)
		return
	}
	logCtx.Info("Cancelled abandoned workflow execution.")
}
