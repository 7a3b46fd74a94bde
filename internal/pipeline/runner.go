package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Translator turns an uploaded document into text.
type Translator interface {
	Translate(ctx context.Context, file FileRef) (TranslationOutput, error)
}

// FeatureExtractor derives the ordered feature list of a translated document.
type FeatureExtractor interface {
	ExtractFeatures(ctx context.Context, file FileRef, translation TranslationOutput) (FeatureList, error)
}

// ScopeSynthesizer writes a scope-of-work document from a feature list.
type ScopeSynthesizer interface {
	SynthesizeScope(ctx context.Context, features FeatureList) (ScopeOutput, error)
}

// Processors bundles the external services behind each stage.
type Processors struct {
	Translator Translator
	Features   FeatureExtractor
	Scope      ScopeSynthesizer
}

// RunObserver is told when a stage invocation starts and how it ended. err is
// nil on success, wraps ErrSuperseded when the result was discarded, and
// wraps ErrProcessingFailed otherwise.
type RunObserver interface {
	StageStarted(ctx context.Context, documentID string, stage Stage)
	StageFinished(ctx context.Context, documentID string, stage Stage, err error)
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithObserver attaches a RunObserver.
func WithObserver(o RunObserver) RunnerOption {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithRunnerLogger sets the Runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = logger
	}
}

// WithRunnerClock overrides the clock used to stamp outputs that arrive
// without a ProducedAt.
func WithRunnerClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = clock
	}
}

// Runner invokes stage processors against the store's session and applies
// their results. A newer invocation of a stage cancels the older one, and a
// result is applied only if its invocation is still the live one when it
// arrives.
type Runner struct {
	store    *HistoryStore
	procs    Processors
	observer RunObserver
	log      *slog.Logger
	now      func() time.Time
}

// NewRunner builds a Runner over store.
func NewRunner(store *HistoryStore, procs Processors, opts ...RunnerOption) *Runner {
	r := &Runner{
		store: store,
		procs: procs,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InFlight reports whether an invocation for stage is pending.
func (r *Runner) InFlight(stage Stage) bool {
	return r.store.Session().InFlight(stage)
}

// Translate runs the translate stage for the current document.
func (r *Runner) Translate(ctx context.Context) (TranslationOutput, error) {
	return runStage(ctx, r, StageTranslate,
		func(ctx context.Context, in Snapshot) (TranslationOutput, error) {
			return r.procs.Translator.Translate(ctx, *in.File)
		},
		func(s *Session, out TranslationOutput) TranslationOutput {
			if out.ProducedAt.IsZero() {
				out.ProducedAt = r.now()
			}
			s.setTranslationLocked(out)
			return out
		})
}

// ExtractFeatures runs the features stage for the current document.
func (r *Runner) ExtractFeatures(ctx context.Context) (FeatureList, error) {
	return runStage(ctx, r, StageFeatures,
		func(ctx context.Context, in Snapshot) (FeatureList, error) {
			return r.procs.Features.ExtractFeatures(ctx, *in.File, *in.Translation)
		},
		func(s *Session, out FeatureList) FeatureList {
			if out.ProducedAt.IsZero() {
				out.ProducedAt = r.now()
			}
			s.setFeaturesLocked(out)
			return out.clone()
		})
}

// SynthesizeScope runs the scope stage for the current document.
func (r *Runner) SynthesizeScope(ctx context.Context) (ScopeOutput, error) {
	return runStage(ctx, r, StageScope,
		func(ctx context.Context, in Snapshot) (ScopeOutput, error) {
			return r.procs.Scope.SynthesizeScope(ctx, *in.Features)
		},
		func(s *Session, out ScopeOutput) ScopeOutput {
			if out.ProducedAt.IsZero() {
				out.ProducedAt = r.now()
			}
			s.setScopeLocked(out)
			return out
		})
}

// Run dispatches to the stage-specific method and returns its output. Stages
// without a processor fail with ErrNotRunnable.
func (r *Runner) Run(ctx context.Context, stage Stage) (any, error) {
	switch stage {
	case StageTranslate:
		return r.Translate(ctx)
	case StageFeatures:
		return r.ExtractFeatures(ctx)
	case StageScope:
		return r.SynthesizeScope(ctx)
	default:
		return nil, fmt.Errorf("stage %s: %w", stage, ErrNotRunnable)
	}
}

func runStage[T any](
	ctx context.Context,
	r *Runner,
	stage Stage,
	call func(context.Context, Snapshot) (T, error),
	apply func(*Session, T) T,
) (T, error) {
	var zero T
	session := r.store.Session()

	r.store.mu.Lock()
	in := session.snapshotLocked()
	if !CanEnter(stage, in) {
		r.store.mu.Unlock()
		return zero, &GuardError{Stage: stage, Redirect: Redirect(stage, in)}
	}
	runCtx, cancel := context.WithCancel(ctx)
	inv := session.beginLocked(stage, cancel)
	r.store.mu.Unlock()
	defer cancel()

	logCtx := r.log.With("documentId", inv.documentID, "stage", stage.String(), "invocation", inv.id)
	logCtx.Info("Stage invocation started.")
	if r.observer != nil {
		r.observer.StageStarted(ctx, inv.documentID, stage)
	}

	out, callErr := call(runCtx, in)

	r.store.mu.Lock()
	live := session.finishLocked(stage, inv)
	var result T
	if live && callErr == nil {
		result = apply(session, out)
	}
	r.store.mu.Unlock()

	var err error
	switch {
	case !live:
		err = fmt.Errorf("%s for document %s: %w", stage, inv.documentID, ErrSuperseded)
		logCtx.Info("Stage result discarded; invocation was superseded.")
	case callErr != nil:
		err = &ProcessingError{Stage: stage, DocumentID: inv.documentID, Reason: callErr.Error(), Err: callErr}
		logCtx.Error("Stage processor failed.", "error", callErr)
	default:
		logCtx.Info("Stage result applied.")
	}
	if r.observer != nil {
		r.observer.StageFinished(ctx, inv.documentID, stage, err)
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}
