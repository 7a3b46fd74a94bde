package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/rfpworkbench/internal/gcp"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
	"github.com/Lllllllleong/rfpworkbench/internal/services"
	"github.com/Lllllllleong/rfpworkbench/internal/workbench"
)

// releaseTimeout bounds the deletion of an evicted document's upload.
const releaseTimeout = 10 * time.Second

// app is the service graph shared by both entry points. The history lives in
// process memory, so both must run in the same instance to share it.
type app struct {
	server   *workbench.Server
	ingestor *workbench.Ingestor

	// closers are released in reverse order of creation.
	closers []io.Closer
}

func (a *app) track(c io.Closer) {
	a.closers = append(a.closers, c)
}

// Close releases every client the app opened and reports all failures.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

var errShuttingDown = errors.New("workbench is shutting down")

var (
	instance *app
	once     sync.Once
	initErr  error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("Workbench", handleWorkbench)
	functions.CloudEvent("IngestUpload", ingestUpload)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := gcp.GetEnv("PORT", "8080")
	errCh := make(chan error, 1)
	go func() {
		errCh <- funcframework.Start(port)
	}()

	select {
	case err := <-errCh:
		slog.Error("Functions framework exited", "error", err)
		closeApp()
		os.Exit(1)
	case <-ctx.Done():
		slog.Info("Shutdown signal received.")
	}
	closeApp()
}

// closeApp releases the app's clients if it was ever built. It waits for an
// initialization in progress and prevents any later one.
func closeApp() {
	once.Do(func() {})
	if instance == nil {
		return
	}
	if err := instance.Close(); err != nil {
		slog.Error("Failed to close clients.", "error", err)
	}
}

func getApp() (*app, error) {
	once.Do(func() {
		instance, initErr = newApp(context.Background())
	})
	if instance == nil && initErr == nil {
		return nil, errShuttingDown
	}
	return instance, initErr
}

func handleWorkbench(w http.ResponseWriter, r *http.Request) {
	a, err := getApp()
	if err != nil {
		slog.Error("CRITICAL: Workbench initialization failed", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	a.server.ServeHTTP(w, r)
}

func ingestUpload(ctx context.Context, e cloudevents.Event) error {
	a, err := getApp()
	if err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		return err
	}
	return a.ingestor.Ingest(ctx, e)
}

func newApp(ctx context.Context) (_ *app, err error) {
	cfg, err := services.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.Default().With("backend", cfg.Backend)

	a := &app{}
	defer func() {
		if err != nil {
			if closeErr := a.Close(); closeErr != nil {
				logger.Error("Failed to close clients after init failure.", "error", closeErr)
			}
		}
	}()

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	a.track(storageClient)
	blobs := gcp.NewGCSBlobStore(storageClient)

	procs, err := a.newProcessors(ctx, cfg, blobs, logger)
	if err != nil {
		return nil, err
	}

	uploader := services.NewUploader(blobs, cfg.UploadBucket, cfg.MaxUploadBytes, logger)
	store := pipeline.NewHistoryStore(
		pipeline.WithSyncPolicy(cfg.SyncPolicy),
		pipeline.WithLogger(logger),
		pipeline.WithEvictionHook(uploader.EvictionHook(releaseTimeout)),
	)

	runnerOpts := []pipeline.RunnerOption{pipeline.WithRunnerLogger(logger)}
	if cfg.StatusRecordingEnabled() {
		fsClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		recorder := services.NewFirestoreStatusRecorder(fsClient, cfg.StatusCollection, logger)
		a.track(recorder)
		runnerOpts = append(runnerOpts, pipeline.WithObserver(recorder))
	}
	runner := pipeline.NewRunner(store, procs, runnerOpts...)

	var publisher workbench.Publisher
	if cfg.ExportBucket != "" {
		publisher = services.NewExportPublisher(blobs, cfg.ExportBucket, logger)
	}

	a.server = workbench.NewServer(store, runner, uploader, publisher, logger)
	a.ingestor = workbench.NewIngestor(store, blobs, uploader, cfg.UploadBucket, logger)
	logger.Info("Workbench initialized.", "syncPolicy", cfg.SyncPolicy.String(), "statusRecording", cfg.StatusRecordingEnabled())
	return a, nil
}

// newProcessors builds the stage processors for the configured backend.
func (a *app) newProcessors(ctx context.Context, cfg *services.Config, blobs *gcp.GCSBlobStore, logger *slog.Logger) (pipeline.Processors, error) {
	if cfg.Backend == services.BackendCanned {
		return services.CannedProcessors(cfg.CannedDelay), nil
	}

	vertex, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexModel)
	if err != nil {
		return pipeline.Processors{}, err
	}
	a.track(vertex)
	procs := pipeline.Processors{
		Translator: services.NewVertexTranslator(vertex, logger),
		Features:   services.NewVertexFeatureExtractor(vertex, logger),
		Scope:      services.NewVertexScopeSynthesizer(vertex, logger),
	}
	if cfg.Backend != services.BackendWorkflow {
		return procs, nil
	}

	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return pipeline.Processors{}, fmt.Errorf("executions.NewClient: %w", err)
	}
	a.track(executionsClient)
	splitter := services.NewPageSplitter(blobs, cfg.SplitPagesBucket, logger)
	procs.Translator = services.NewWorkflowTranslator(splitter, executionsClient, blobs, services.WorkflowTranslatorConfig{
		ProjectID:                cfg.ProjectID,
		WorkflowLocation:         cfg.WorkflowLocation,
		WorkflowID:               cfg.WorkflowID,
		TranslatedMarkdownBucket: cfg.TranslatedMarkdownBucket,
	}, logger)
	return procs, nil
}
