package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/Lllllllleong/rfpworkbench/internal/models"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

const markdownContentType = "text/markdown; charset=utf-8"

// PageWorker translates one split page for the document-processing workflow
// and saves the markdown where WorkflowTranslator collects it.
type PageWorker struct {
	translator pipeline.Translator
	blobs      BlobStore
	bucket     string
	log        *slog.Logger
}

// NewPageWorker writes page markdown to bucket.
func NewPageWorker(translator pipeline.Translator, blobs BlobStore, bucket string, logger *slog.Logger) *PageWorker {
	return &PageWorker{translator: translator, blobs: blobs, bucket: bucket, log: logger}
}

// Process translates req's page. Saving is idempotent, so a workflow retry of
// a page that already succeeded is harmless.
func (p *PageWorker) Process(ctx context.Context, req *models.PageTranslatorRequest) (*models.PageTranslatorResponse, error) {
	logCtx := p.log.With("documentId", req.DocumentID, "page", req.PageNumber, "executionId", req.ExecutionID)
	if req.DocumentID == "" || req.GCSUri == "" || req.PageNumber <= 0 {
		return nil, fmt.Errorf("documentId, gcsUri and a positive pageNumber are required")
	}

	out, err := p.translator.Translate(ctx, pipeline.FileRef{
		URI:         req.GCSUri,
		Name:        path.Base(req.GCSUri),
		ContentType: pdfContentType,
		Pages:       1,
	})
	if err != nil {
		logCtx.Error("Page translation failed", "error", err)
		return nil, err
	}

	object := markdownPageObject(req.DocumentID, req.PageNumber)
	uri, err := p.blobs.Put(ctx, p.bucket, object, strings.NewReader(out.Text), markdownContentType)
	if err != nil {
		logCtx.Error("Failed to save page markdown", "error", err, "object", object)
		return nil, err
	}

	logCtx.Info("Page translation complete.", "outputUri", uri)
	return &models.PageTranslatorResponse{Status: "success", OutputGCSUri: uri}, nil
}

func markdownPageObject(docKey string, page int) string {
	return fmt.Sprintf("%s/%05d.md", docKey, page)
}
