package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, opts ...Option) *HistoryStore {
	t.Helper()
	seq := 0
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	defaults := []Option{
		WithLogger(quietLogger()),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("doc-%02d", seq)
		}),
		WithClock(func() time.Time {
			return base.Add(time.Duration(seq) * time.Minute)
		}),
	}
	return NewHistoryStore(append(defaults, opts...)...)
}

func fileRef(name string) FileRef {
	return FileRef{URI: "gs://uploads/" + name, Name: name, ContentType: "application/pdf"}
}

func names(summaries []Summary) []string {
	out := make([]string, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s.Name)
	}
	return out
}

func TestNewHistoryStoreIsEmpty(t *testing.T) {
	store := newTestStore(t)

	id, ok := store.CurrentID()
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Empty(t, store.ListHistory())
	assert.Equal(t, Snapshot{}, store.Session().Snapshot())
}

func TestAddDocumentBecomesCurrentWithEmptyOutputs(t *testing.T) {
	store := newTestStore(t)

	id := store.AddDocument(fileRef("a.pdf"), "a.pdf")

	current, ok := store.CurrentID()
	require.True(t, ok)
	assert.Equal(t, id, current)

	snap := store.Session().Snapshot()
	require.NotNil(t, snap.File)
	assert.Equal(t, "gs://uploads/a.pdf", snap.File.URI)
	assert.Nil(t, snap.Translation)
	assert.Nil(t, snap.Features)
	assert.Nil(t, snap.Scope)

	rec, ok := store.Record(id)
	require.True(t, ok)
	assert.Equal(t, "a.pdf", rec.Name)
	assert.Equal(t, time.Date(2025, 7, 1, 9, 1, 0, 0, time.UTC), rec.UploadedAt)
}

func TestAddDocumentResetsSessionFromPreviousDocument(t *testing.T) {
	store := newTestStore(t)
	store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.Session().SetTranslation(TranslationOutput{Text: "T"})

	store.AddDocument(fileRef("b.pdf"), "b.pdf")

	snap := store.Session().Snapshot()
	assert.Equal(t, "b.pdf", snap.File.Name)
	assert.Nil(t, snap.Translation)
}

func TestHistoryKeepsTenMostRecent(t *testing.T) {
	var evicted []string
	store := newTestStore(t, WithEvictionHook(func(rec DocumentRecord) {
		evicted = append(evicted, rec.Name)
	}))

	for i := 0; i <= 10; i++ {
		name := fmt.Sprintf("doc%d", i)
		store.AddDocument(fileRef(name), name)
	}

	history := store.ListHistory()
	require.Len(t, history, HistoryCapacity)
	assert.Equal(t, []string{
		"doc10", "doc9", "doc8", "doc7", "doc6",
		"doc5", "doc4", "doc3", "doc2", "doc1",
	}, names(history))
	assert.NotContains(t, names(history), "doc0")
	assert.Equal(t, []string{"doc0"}, evicted)
	assert.True(t, history[0].Current)
}

func TestHistoryBoundHoldsForManyInsertions(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 37; i++ {
		name := fmt.Sprintf("n%d", i)
		store.AddDocument(fileRef(name), name)
	}

	history := store.ListHistory()
	require.Len(t, history, HistoryCapacity)
	for i, s := range history {
		assert.Equal(t, fmt.Sprintf("n%d", 36-i), s.Name)
	}
}

func TestSelectUnknownDocumentLeavesStateUnchanged(t *testing.T) {
	store := newTestStore(t)
	store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.Session().SetTranslation(TranslationOutput{Text: "T"})
	beforeID, _ := store.CurrentID()
	beforeSnap := store.Session().Snapshot()

	err := store.SelectDocument("missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	afterID, _ := store.CurrentID()
	assert.Equal(t, beforeID, afterID)
	assert.Equal(t, beforeSnap, store.Session().Snapshot())
}

func TestSelectOnEmptyHistoryReportsNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.SelectDocument("")

	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := store.CurrentID()
	assert.False(t, ok)
}

func TestSelectMirrorsRecordExactly(t *testing.T) {
	store := newTestStore(t)
	first := store.AddDocument(fileRef("a.pdf"), "a.pdf")
	produced := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
	store.Session().SetTranslation(TranslationOutput{Text: "T", ProducedAt: produced})
	store.Session().SetFeatures(FeatureList{Items: []string{"x", "x", "y"}, ProducedAt: produced})
	store.AddDocument(fileRef("b.pdf"), "b.pdf")

	require.NoError(t, store.SelectDocument(first))

	rec, ok := store.Record(first)
	require.True(t, ok)
	snap := store.Session().Snapshot()
	assert.Equal(t, rec.File, *snap.File)
	assert.Equal(t, rec.Translation, snap.Translation)
	assert.Equal(t, rec.Features, snap.Features)
	assert.Nil(t, rec.Scope)
	assert.Nil(t, snap.Scope)
}

func TestSelectDoesNotReorderHistory(t *testing.T) {
	store := newTestStore(t)
	first := store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.AddDocument(fileRef("b.pdf"), "b.pdf")

	require.NoError(t, store.SelectDocument(first))

	history := store.ListHistory()
	assert.Equal(t, []string{"b.pdf", "a.pdf"}, names(history))
	assert.False(t, history[0].Current)
	assert.True(t, history[1].Current)
}

func TestSelectCurrentIsNoOp(t *testing.T) {
	for _, policy := range []SyncPolicy{SyncWriteThrough, SyncExplicitCommit} {
		t.Run(policy.String(), func(t *testing.T) {
			store := newTestStore(t, WithSyncPolicy(policy))
			id := store.AddDocument(fileRef("a.pdf"), "a.pdf")
			store.Session().SetTranslation(TranslationOutput{Text: "T"})
			before := store.Session().Snapshot()
			beforeHistory := store.ListHistory()

			require.NoError(t, store.SelectDocument(id))

			assert.Equal(t, before, store.Session().Snapshot())
			assert.Equal(t, beforeHistory, store.ListHistory())
		})
	}
}

func TestSwitchingDocumentsScenario(t *testing.T) {
	store := newTestStore(t)
	f1, f2 := fileRef("a.pdf"), fileRef("b.pdf")
	idA := store.AddDocument(f1, "a.pdf")
	store.AddDocument(f2, "b.pdf")

	require.NoError(t, store.SelectDocument(idA))

	file, ok := store.Session().File()
	require.True(t, ok)
	assert.Equal(t, f1, file)
	_, ok = store.Session().Translation()
	assert.False(t, ok)
	assert.False(t, store.Session().CanEnter(StageFeatures))

	store.Session().SetTranslation(TranslationOutput{Text: "T"})

	assert.True(t, store.Session().CanEnter(StageFeatures))
}

func TestWriteThroughKeepsOutputsAcrossSwitches(t *testing.T) {
	store := newTestStore(t)
	idA := store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.Session().SetTranslation(TranslationOutput{Text: "A translated"})
	idB := store.AddDocument(fileRef("b.pdf"), "b.pdf")
	store.Session().SetTranslation(TranslationOutput{Text: "B translated"})

	require.NoError(t, store.SelectDocument(idA))
	tr, ok := store.Session().Translation()
	require.True(t, ok)
	assert.Equal(t, "A translated", tr.Text)

	require.NoError(t, store.SelectDocument(idB))
	tr, ok = store.Session().Translation()
	require.True(t, ok)
	assert.Equal(t, "B translated", tr.Text)

	history := store.ListHistory()
	assert.True(t, history[0].HasTranslation)
	assert.True(t, history[1].HasTranslation)
	assert.False(t, history[0].HasFeatures)
}

func TestExplicitCommitPolicy(t *testing.T) {
	store := newTestStore(t, WithSyncPolicy(SyncExplicitCommit))
	idA := store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.Session().SetTranslation(TranslationOutput{Text: "uncommitted"})

	rec, _ := store.Record(idA)
	assert.Nil(t, rec.Translation, "session writes must not reach the record before commit")

	require.NoError(t, store.CommitToHistory())
	rec, _ = store.Record(idA)
	require.NotNil(t, rec.Translation)
	assert.Equal(t, "uncommitted", rec.Translation.Text)

	store.Session().SetScope(ScopeOutput{Markdown: "# lost"})
	store.AddDocument(fileRef("b.pdf"), "b.pdf")
	require.NoError(t, store.SelectDocument(idA))
	_, ok := store.Session().Scope()
	assert.False(t, ok, "uncommitted scope is dropped when switching away")
}

func TestCommitWithoutCurrentDocument(t *testing.T) {
	store := newTestStore(t, WithSyncPolicy(SyncExplicitCommit))

	assert.ErrorIs(t, store.CommitToHistory(), ErrNotFound)
}

func TestClearOnlyResetsSession(t *testing.T) {
	store := newTestStore(t)
	id := store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.Session().SetTranslation(TranslationOutput{Text: "T"})

	store.Session().Clear()

	assert.Equal(t, Snapshot{}, store.Session().Snapshot())
	rec, ok := store.Record(id)
	require.True(t, ok)
	require.NotNil(t, rec.Translation)
	assert.Equal(t, "T", rec.Translation.Text)
}

func TestClearLeavesNoDocumentCurrent(t *testing.T) {
	store := newTestStore(t)
	id := store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.Session().SetTranslation(TranslationOutput{Text: "T"})

	store.Session().Clear()

	_, ok := store.CurrentID()
	assert.False(t, ok)
	for _, summary := range store.ListHistory() {
		assert.False(t, summary.Current, summary.ID)
	}

	store.Session().SetFeatures(FeatureList{Items: []string{"x"}})
	rec, _ := store.Record(id)
	assert.Nil(t, rec.Features)
	assert.ErrorIs(t, store.CommitToHistory(), ErrNotFound)
}

func TestSelectAfterClearMirrorsRecordAgain(t *testing.T) {
	store := newTestStore(t)
	id := store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.Session().SetTranslation(TranslationOutput{Text: "T"})
	store.Session().Clear()

	require.NoError(t, store.SelectDocument(id))

	current, ok := store.CurrentID()
	require.True(t, ok)
	assert.Equal(t, id, current)
	file, ok := store.Session().File()
	require.True(t, ok)
	assert.Equal(t, "gs://uploads/a.pdf", file.URI)
	translation, ok := store.Session().Translation()
	require.True(t, ok)
	assert.Equal(t, "T", translation.Text)
}

func TestRecordCopiesAreIsolated(t *testing.T) {
	store := newTestStore(t)
	id := store.AddDocument(fileRef("a.pdf"), "a.pdf")
	store.Session().SetFeatures(FeatureList{Items: []string{"one", "two"}})

	rec, _ := store.Record(id)
	rec.Features.Items[0] = "mutated"

	features, ok := store.Session().Features()
	require.True(t, ok)
	assert.Equal(t, []string{"one", "two"}, features.Items)
	again, _ := store.Record(id)
	assert.Equal(t, []string{"one", "two"}, again.Features.Items)
}

func TestParseSyncPolicy(t *testing.T) {
	p, err := ParseSyncPolicy("")
	require.NoError(t, err)
	assert.Equal(t, SyncWriteThrough, p)

	p, err = ParseSyncPolicy("commit")
	require.NoError(t, err)
	assert.Equal(t, SyncExplicitCommit, p)

	_, err = ParseSyncPolicy("sometimes")
	assert.Error(t, err)
}
