package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// BlobStore is the object storage the workbench reads and writes.
// *gcp.GCSBlobStore implements it.
type BlobStore interface {
	Put(ctx context.Context, bucket, object string, r io.Reader, contentType string) (string, error)
	Read(ctx context.Context, uri string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, uri string) error
}

// Upload errors.
var (
	ErrInvalidDocument  = errors.New("only PDF documents are accepted")
	ErrDocumentTooLarge = errors.New("document exceeds the upload size limit")
)

const pdfContentType = "application/pdf"

// Uploader validates uploaded documents and stores them in the upload bucket.
type Uploader struct {
	blobs    BlobStore
	bucket   string
	maxBytes int64
	inspect  func([]byte) (int, error)
	log      *slog.Logger
}

// NewUploader builds an Uploader writing to bucket.
func NewUploader(blobs BlobStore, bucket string, maxBytes int64, logger *slog.Logger) *Uploader {
	return &Uploader{blobs: blobs, bucket: bucket, maxBytes: maxBytes, inspect: inspectPDF, log: logger}
}

// Upload checks that r holds a PDF, stores it under a fresh key and returns
// the reference the pipeline keeps for it. contentType may be empty.
func (u *Uploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (pipeline.FileRef, error) {
	logCtx := u.log.With("fileName", name)

	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || (mediaType != pdfContentType && mediaType != "application/octet-stream") {
			logCtx.Warn("Rejected upload with unexpected content type.", "contentType", contentType)
			return pipeline.FileRef{}, fmt.Errorf("content type %q: %w", contentType, ErrInvalidDocument)
		}
	}

	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return pipeline.FileRef{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > u.maxBytes {
		return pipeline.FileRef{}, fmt.Errorf("%s: %w (%d bytes)", name, ErrDocumentTooLarge, u.maxBytes)
	}

	pages, err := u.inspect(data)
	if err != nil {
		logCtx.Warn("Rejected upload that is not a valid PDF.", "error", err)
		return pipeline.FileRef{}, err
	}

	sum := sha256.Sum256(data)
	object := fmt.Sprintf("%s/%s", uuid.NewString(), objectName(name))
	uri, err := u.blobs.Put(ctx, u.bucket, object, bytes.NewReader(data), pdfContentType)
	if err != nil {
		logCtx.Error("Failed to store upload", "error", err, "bucket", u.bucket, "object", object)
		return pipeline.FileRef{}, fmt.Errorf("failed to store upload: %w", err)
	}

	logCtx.Info("Upload stored.", "uri", uri, "pages", pages, "bytes", len(data))
	return pipeline.FileRef{
		URI:         uri,
		Name:        name,
		ContentType: pdfContentType,
		Size:        int64(len(data)),
		Pages:       pages,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

// Release deletes an uploaded document. It is called when the document's
// record leaves the history.
func (u *Uploader) Release(ctx context.Context, file pipeline.FileRef) error {
	if file.URI == "" {
		return nil
	}
	if err := u.blobs.Delete(ctx, file.URI); err != nil {
		u.log.Error("Failed to release uploaded document", "error", err, "uri", file.URI)
		return err
	}
	u.log.Info("Released uploaded document.", "uri", file.URI)
	return nil
}

// EvictionHook returns a history eviction hook that releases the evicted
// record's upload. The hook runs inline with the upload that caused the
// eviction, so each release is bounded by timeout.
func (u *Uploader) EvictionHook(timeout time.Duration) func(pipeline.DocumentRecord) {
	return func(rec pipeline.DocumentRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = u.Release(ctx, rec.File)
	}
}

// inspectPDF validates data as a PDF and returns its page count.
func inspectPDF(data []byte) (int, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, fmt.Errorf("missing PDF header: %w", ErrInvalidDocument)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: page count: %v", ErrInvalidDocument, err)
	}
	return pages, nil
}

var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// objectName turns a user-supplied file name into a safe object name that
// keeps its .pdf extension.
func objectName(name string) string {
	base := strings.TrimSuffix(strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/"))), ".pdf")
	sanitized := strings.Trim(nonAlphanumericRegex.ReplaceAllString(base, "_"), "_")

	const maxLength = 100
	if len(sanitized) > maxLength {
		sanitized = strings.Trim(sanitized[:maxLength], "_")
	}
	if sanitized == "" {
		sanitized = "document"
	}
	return sanitized + ".pdf"
}
