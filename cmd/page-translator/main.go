package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/rfpworkbench/internal/gcp"
	"github.com/Lllllllleong/rfpworkbench/internal/models"
	"github.com/Lllllllleong/rfpworkbench/internal/services"
)

var (
	workerInstance *services.PageWorker
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleTranslatePage" is the entry point the workflow calls per page.
	functions.HTTP("HandleTranslatePage", handleTranslatePage)
}

// main is required by the Go Functions Framework.
func main() {}

func newPageWorker(ctx context.Context) (*services.PageWorker, error) {
	cfg, err := services.LoadPageWorkerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	vertex, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	logger := slog.Default()
	return services.NewPageWorker(services.NewVertexTranslator(vertex, logger), gcp.NewGCSBlobStore(storageClient), cfg.MarkdownBucket, logger), nil
}

func handleTranslatePage(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		workerInstance, initErr = newPageWorker(context.Background())
	})
	if initErr != nil {
		slog.Error("CRITICAL: Page worker initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.PageTranslatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := workerInstance.Process(r.Context(), &req)
	if err != nil {
		// Already logged inside Process. A 500 makes the workflow retry the page.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
