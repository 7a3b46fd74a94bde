package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/rfpworkbench/internal/models"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// FirestoreStatusRecorder writes a models.StageRun per document and stage.
// It implements pipeline.RunObserver.
type FirestoreStatusRecorder struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
	log        *slog.Logger
}

// NewFirestoreStatusRecorder records into collection.
func NewFirestoreStatusRecorder(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreStatusRecorder {
	return &FirestoreStatusRecorder{client: client, collection: collection, now: time.Now, log: logger}
}

// StageStarted implements pipeline.RunObserver.
func (r *FirestoreStatusRecorder) StageStarted(ctx context.Context, documentID string, stage pipeline.Stage) {
	now := r.now()
	run := models.StageRun{
		DocumentID: documentID,
		Stage:      stage.String(),
		Status:     models.StatusRunning,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := r.doc(documentID, stage).Set(ctx, run); err != nil {
		r.log.Error("Failed to record stage start.", "documentId", documentID, "stage", stage.String(), "error", err)
	}
}

// StageFinished implements pipeline.RunObserver. The status is written even
// when the caller's context is already cancelled.
func (r *FirestoreStatusRecorder) StageFinished(ctx context.Context, documentID string, stage pipeline.Stage, err error) {
	ctx = context.WithoutCancel(ctx)
	if updateErr := r.updateStatus(ctx, r.doc(documentID, stage), documentID, stage, runStatus(err)); updateErr != nil {
		r.log.Error("CRITICAL: Failed to update Firestore stage status.", "documentId", documentID, "stage", stage.String(), "updateError", updateErr)
	}
}

// Close releases the Firestore client.
func (r *FirestoreStatusRecorder) Close() error {
	return r.client.Close()
}

func (r *FirestoreStatusRecorder) doc(documentID string, stage pipeline.Stage) *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(fmt.Sprintf("%s_%s", documentID, stage))
}

type statusUpdate struct {
	status     string
	errDetails string
}

// updateStatus merges the terminal status into the run document, creating it
// when the start record never landed.
func (r *FirestoreStatusRecorder) updateStatus(ctx context.Context, docRef *firestore.DocumentRef, documentID string, stage pipeline.Stage, u statusUpdate) error {
	_, err := docRef.Set(ctx, terminalFields(documentID, stage, u, r.now()), firestore.MergeAll)
	return err
}

func terminalFields(documentID string, stage pipeline.Stage, u statusUpdate, now time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"documentId": documentID,
		"stage":      stage.String(),
		"status":     u.status,
		"updatedAt":  now,
	}
	if u.errDetails != "" {
		fields["errorDetails"] = u.errDetails
	}
	return fields
}

// runStatus maps a Runner outcome to the status stored for it.
func runStatus(err error) statusUpdate {
	switch {
	case err == nil:
		return statusUpdate{status: models.StatusComplete}
	case errors.Is(err, pipeline.ErrSuperseded):
		return statusUpdate{status: models.StatusSuperseded}
	default:
		return statusUpdate{status: models.StatusFailed, errDetails: err.Error()}
	}
}
