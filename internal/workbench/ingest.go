package workbench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/rfpworkbench/internal/gcp"
	"github.com/Lllllllleong/rfpworkbench/internal/models"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
	"github.com/Lllllllleong/rfpworkbench/internal/services"
)

// ObjectReader reads an object by its gs:// uri.
type ObjectReader interface {
	Read(ctx context.Context, uri string) ([]byte, error)
}

// Ingestor adds documents dropped into a watched bucket to the history, as if
// they had been uploaded through the API.
type Ingestor struct {
	store        *pipeline.HistoryStore
	objects      ObjectReader
	uploader     Uploader
	uploadBucket string
	log          *slog.Logger
}

// NewIngestor builds an Ingestor. Events from uploadBucket are ignored since
// the uploader writes there itself.
func NewIngestor(store *pipeline.HistoryStore, objects ObjectReader, uploader Uploader, uploadBucket string, logger *slog.Logger) *Ingestor {
	return &Ingestor{store: store, objects: objects, uploader: uploader, uploadBucket: uploadBucket, log: logger}
}

// Ingest handles a GCS object-finalized event. Objects that are not valid PDFs
// are logged and acknowledged so the event is not redelivered.
func (i *Ingestor) Ingest(ctx context.Context, e cloudevents.Event) error {
	var gcsEvent models.GCSEvent
	if err := e.DataAs(&gcsEvent); err != nil {
		i.log.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("event data: %w", err)
	}

	logCtx := i.log.With("bucket", gcsEvent.Bucket, "object", gcsEvent.Name, "eventId", e.ID())
	if gcsEvent.Bucket == i.uploadBucket {
		logCtx.Info("Ignoring event from the upload bucket.")
		return nil
	}
	if !strings.EqualFold(path.Ext(gcsEvent.Name), ".pdf") {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}

	data, err := i.objects.Read(ctx, gcp.GCSURI(gcsEvent.Bucket, gcsEvent.Name))
	if err != nil {
		logCtx.Error("Failed to read dropped document", "error", err)
		return err
	}

	name := path.Base(gcsEvent.Name)
	ref, err := i.uploader.Upload(ctx, name, gcsEvent.ContentType, bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, services.ErrInvalidDocument) || errors.Is(err, services.ErrDocumentTooLarge) {
			logCtx.Warn("Dropped document rejected.", "error", err)
			return nil
		}
		return err
	}

	id := i.store.AddDocument(ref, name)
	logCtx.Info("Dropped document added to history.", "documentId", id)
	return nil
}
