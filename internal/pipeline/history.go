package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryCapacity is the number of documents the history keeps.
const HistoryCapacity = 10

// SyncPolicy decides when session writes reach the current DocumentRecord.
type SyncPolicy int

const (
	// SyncWriteThrough copies every session write into the current record in
	// the same critical section.
	SyncWriteThrough SyncPolicy = iota
	// SyncExplicitCommit leaves records untouched until CommitToHistory.
	SyncExplicitCommit
)

func (p SyncPolicy) String() string {
	if p == SyncExplicitCommit {
		return "commit"
	}
	return "write-through"
}

// ParseSyncPolicy accepts "write-through" or "commit". The empty string maps
// to write-through.
func ParseSyncPolicy(s string) (SyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "write-through", "writethrough":
		return SyncWriteThrough, nil
	case "commit", "explicit":
		return SyncExplicitCommit, nil
	}
	return SyncWriteThrough, fmt.Errorf("unknown history sync policy %q", s)
}

// Option customizes a HistoryStore during construction.
type Option func(*HistoryStore)

// WithClock overrides the clock used for upload timestamps.
func WithClock(clock func() time.Time) Option {
	return func(h *HistoryStore) {
		h.now = clock
	}
}

// WithIDGenerator overrides how record ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(h *HistoryStore) {
		h.newID = fn
	}
}

// WithSyncPolicy sets the session to record sync policy.
func WithSyncPolicy(p SyncPolicy) Option {
	return func(h *HistoryStore) {
		h.policy = p
	}
}

// WithEvictionHook registers fn to receive records dropped off the tail of
// the history. It runs after the store's lock is released.
func WithEvictionHook(fn func(DocumentRecord)) Option {
	return func(h *HistoryStore) {
		h.onEvict = fn
	}
}

// WithLogger sets the logger used by the store and its session.
func WithLogger(logger *slog.Logger) Option {
	return func(h *HistoryStore) {
		h.log = logger
	}
}

// HistoryStore is the bounded, most-recent-first list of uploaded documents.
// It owns the Session that mirrors the current document.
type HistoryStore struct {
	mu        sync.Mutex
	records   []*DocumentRecord
	currentID string
	session   *Session

	policy  SyncPolicy
	now     func() time.Time
	newID   func() string
	onEvict func(DocumentRecord)
	log     *slog.Logger
}

// NewHistoryStore builds an empty store with no current document.
func NewHistoryStore(opts ...Option) *HistoryStore {
	h := &HistoryStore{
		now:   time.Now,
		newID: uuid.NewString,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.session = newSession(h)
	return h
}

// Session returns the live view of the current document.
func (h *HistoryStore) Session() *Session { return h.session }

// Policy reports the configured sync policy.
func (h *HistoryStore) Policy() SyncPolicy { return h.policy }

// AddDocument records a freshly uploaded document at the head of the history,
// makes it current and resets the session to mirror it. Anything beyond
// HistoryCapacity is dropped from the tail.
func (h *HistoryStore) AddDocument(file FileRef, name string) string {
	h.mu.Lock()
	rec := &DocumentRecord{
		ID:         h.newID(),
		File:       file,
		Name:       name,
		UploadedAt: h.now(),
	}
	records := make([]*DocumentRecord, 0, len(h.records)+1)
	records = append(records, rec)
	records = append(records, h.records...)

	var evicted []DocumentRecord
	if len(records) > HistoryCapacity {
		for _, old := range records[HistoryCapacity:] {
			evicted = append(evicted, old.clone())
		}
		records = records[:HistoryCapacity]
	}
	h.records = records
	h.currentID = rec.ID
	h.session.mirrorLocked(rec)
	h.mu.Unlock()

	h.log.Info("Document added to history.", "documentId", rec.ID, "name", name, "historySize", len(records))
	for _, old := range evicted {
		h.log.Info("Document evicted from history.", "documentId", old.ID, "name", old.Name)
		if h.onEvict != nil {
			h.onEvict(old)
		}
	}
	return rec.ID
}

// SelectDocument makes id the current document and re-mirrors its stored
// outputs into the session. An unknown id leaves everything unchanged and
// returns ErrNotFound. Selecting the document that is already current is a
// no-op.
func (h *HistoryStore) SelectDocument(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.findLocked(id)
	if rec == nil {
		return fmt.Errorf("select %q: %w", id, ErrNotFound)
	}
	if id == h.currentID {
		return nil
	}
	h.currentID = id
	h.session.mirrorLocked(rec)
	h.log.Info("Document selected.", "documentId", id)
	return nil
}

// ListHistory returns a summary per record, most recent first.
func (h *HistoryStore) ListHistory() []Summary {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Summary, 0, len(h.records))
	for _, rec := range h.records {
		out = append(out, Summary{
			ID:             rec.ID,
			Name:           rec.Name,
			UploadedAt:     rec.UploadedAt,
			Current:        rec.ID == h.currentID,
			HasTranslation: rec.Translation != nil,
			HasFeatures:    rec.Features != nil,
			HasScope:       rec.Scope != nil,
		})
	}
	return out
}

// CurrentID returns the id of the current document, if any.
func (h *HistoryStore) CurrentID() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentID, h.currentID != ""
}

// Record returns a copy of the record with the given id.
func (h *HistoryStore) Record(id string) (DocumentRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := h.findLocked(id)
	if rec == nil {
		return DocumentRecord{}, false
	}
	return rec.clone(), true
}

// CommitToHistory copies the session's stage outputs into the current record.
// Under SyncWriteThrough the two are already equal and this changes nothing.
func (h *HistoryStore) CommitToHistory() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.findLocked(h.currentID)
	if rec == nil {
		return fmt.Errorf("commit: no current document: %w", ErrNotFound)
	}
	s := h.session
	rec.Translation = cloneTranslation(s.translation)
	rec.Features = cloneFeatures(s.features)
	rec.Scope = cloneScope(s.scope)
	h.log.Info("Session committed to history.", "documentId", rec.ID)
	return nil
}

func (h *HistoryStore) findLocked(id string) *DocumentRecord {
	if id == "" {
		return nil
	}
	for _, rec := range h.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

// writeThroughLocked applies fn to the current record when the policy asks
// for it. The caller holds h.mu.
func (h *HistoryStore) writeThroughLocked(fn func(*DocumentRecord)) {
	if h.policy != SyncWriteThrough {
		return
	}
	if rec := h.findLocked(h.currentID); rec != nil {
		fn(rec)
	}
}
