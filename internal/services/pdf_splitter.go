package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

const (
	uploadConcurrency = 10
	uploadMaxRetries  = 4
)

// PageSplitter splits an uploaded PDF into single-page documents in the
// split-pages bucket, the layout the document-processing workflow reads.
type PageSplitter struct {
	blobs   BlobStore
	bucket  string
	backoff time.Duration
	log     *slog.Logger
}

// NewPageSplitter builds a splitter writing into bucket.
func NewPageSplitter(blobs BlobStore, bucket string, logger *slog.Logger) *PageSplitter {
	return &PageSplitter{blobs: blobs, bucket: bucket, backoff: time.Second, log: logger}
}

// Split writes every page of file to <docKey>/<page>.pdf and returns the
// page count.
func (s *PageSplitter) Split(ctx context.Context, file pipeline.FileRef, docKey string) (int, error) {
	logCtx := s.log.With("fileUri", file.URI, "documentKey", docKey)
	logCtx.Info("Splitting document into pages.")

	tempDir, err := os.MkdirTemp("", "rfp-splitter-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	data, err := s.blobs.Read(ctx, file.URI)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return 0, err
	}
	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(sourcePath, data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write temp file at %s: %w", sourcePath, err)
	}

	optimizedPath := filepath.Join(tempDir, "optimized.pdf")
	if err := optimizePDF(sourcePath, optimizedPath); err != nil {
		logCtx.Error("Failed to validate/optimize PDF", "error", err)
		return 0, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(optimizedPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := api.SplitFile(optimizedPath, tempDir, 1, nil); err != nil {
		return 0, fmt.Errorf("failed to split PDF: %w", err)
	}
	logCtx.Info("PDF optimized and split locally.", "pageCount", pageCount)

	if err := s.uploadPages(ctx, optimizedPath, docKey, pageCount); err != nil {
		logCtx.Error("One or more pages failed to upload", "error", err)
		return 0, err
	}
	logCtx.Info("All pages uploaded.", "pageCount", pageCount)
	return pageCount, nil
}

func (s *PageSplitter) uploadPages(ctx context.Context, optimizedPath, docKey string, pageCount int) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(uploadConcurrency)

	splitFileBase := strings.TrimSuffix(optimizedPath, filepath.Ext(optimizedPath))
	for page := 1; page <= pageCount; page++ {
		localPath := fmt.Sprintf("%s_%d.pdf", splitFileBase, page)
		object := pageObject(docKey, page)
		eg.Go(func() error {
			if err := s.uploadWithRetry(gctx, localPath, object); err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (s *PageSplitter) uploadWithRetry(ctx context.Context, localPath, object string) error {
	backoff := s.backoff
	var lastErr error

	for attempt := 1; attempt <= uploadMaxRetries; attempt++ {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("could not open local file %s: %w", localPath, err)
		}
		if _, err = s.blobs.Put(ctx, s.bucket, object, bytes.NewReader(data), pdfContentType); err == nil {
			return nil
		}

		lastErr = err
		s.log.Warn("Upload failed, will retry.",
			"gcsObject", object,
			"attempt", attempt,
			"maxRetries", uploadMaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

func pageObject(docKey string, page int) string {
	return fmt.Sprintf("%s/%05d.pdf", docKey, page)
}

func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}
