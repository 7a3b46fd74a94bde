package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/rfpworkbench/internal/export"
)

// ExportPublisher writes formatted exports to the export bucket.
type ExportPublisher struct {
	blobs  BlobStore
	bucket string
	log    *slog.Logger
}

// NewExportPublisher builds a publisher writing to bucket.
func NewExportPublisher(blobs BlobStore, bucket string, logger *slog.Logger) *ExportPublisher {
	return &ExportPublisher{blobs: blobs, bucket: bucket, log: logger}
}

// Publish writes every artifact under <documentID>/<runKey>/ concurrently and
// returns their uris keyed by file name.
func (p *ExportPublisher) Publish(ctx context.Context, documentID, runKey string, artifacts ...export.Artifact) (map[string]string, error) {
	logCtx := p.log.With("documentId", documentID, "bucket", p.bucket)

	var mu sync.Mutex
	uris := make(map[string]string, len(artifacts))
	eg, gctx := errgroup.WithContext(ctx)
	for _, a := range artifacts {
		object := fmt.Sprintf("%s/%s/%s", documentID, runKey, a.FileName)
		eg.Go(func() error {
			uri, err := p.blobs.Put(gctx, p.bucket, object, strings.NewReader(a.Body), a.ContentType)
			if err != nil {
				return fmt.Errorf("%s: %w", a.FileName, err)
			}
			mu.Lock()
			uris[a.FileName] = uri
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("Failed to publish exports", "error", err)
		return nil, err
	}
	logCtx.Info("Exports published.", "count", len(uris))
	return uris, nil
}
