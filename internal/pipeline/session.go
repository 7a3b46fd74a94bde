package pipeline

import "context"

// Snapshot is a point-in-time copy of the session's fields. Guards are pure
// functions of a Snapshot.
type Snapshot struct {
	File        *FileRef           `json:"file,omitempty"`
	Translation *TranslationOutput `json:"translation,omitempty"`
	Features    *FeatureList       `json:"features,omitempty"`
	Scope       *ScopeOutput       `json:"scope,omitempty"`
}

// Session is the live view of the current document that stage processors
// read from and write to. It shares its store's mutex.
type Session struct {
	store *HistoryStore

	file        *FileRef
	translation *TranslationOutput
	features    *FeatureList
	scope       *ScopeOutput

	seq      uint64
	inflight map[Stage]*invocation
}

// invocation is one in-flight processor call. Only the invocation currently
// registered for its stage may apply a result.
type invocation struct {
	id         uint64
	documentID string
	cancel     context.CancelFunc
}

func newSession(store *HistoryStore) *Session {
	return &Session{
		store:    store,
		inflight: make(map[Stage]*invocation),
	}
}

// SetTranslation overwrites the translation. Any in-flight translate
// invocation is superseded.
func (s *Session) SetTranslation(out TranslationOutput) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.supersedeLocked(StageTranslate)
	s.setTranslationLocked(out)
}

// SetFeatures overwrites the feature list. Any in-flight features invocation
// is superseded.
func (s *Session) SetFeatures(out FeatureList) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.supersedeLocked(StageFeatures)
	s.setFeaturesLocked(out)
}

// SetScope overwrites the scope of work. Any in-flight scope invocation is
// superseded.
func (s *Session) SetScope(out ScopeOutput) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.supersedeLocked(StageScope)
	s.setScopeLocked(out)
}

// Clear resets every field to empty, abandons in-flight invocations and
// leaves no document current. Records keep their outputs; it never writes
// through to the history.
func (s *Session) Clear() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.resetLocked()
	s.store.currentID = ""
}

// File returns the current document's file reference.
func (s *Session) File() (FileRef, bool) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.file == nil {
		return FileRef{}, false
	}
	return *s.file, true
}

// Translation returns the current translation.
func (s *Session) Translation() (TranslationOutput, bool) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.translation == nil {
		return TranslationOutput{}, false
	}
	return *s.translation, true
}

// Features returns a copy of the current feature list.
func (s *Session) Features() (FeatureList, bool) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.features == nil {
		return FeatureList{}, false
	}
	return s.features.clone(), true
}

// Scope returns the current scope of work.
func (s *Session) Scope() (ScopeOutput, bool) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.scope == nil {
		return ScopeOutput{}, false
	}
	return *s.scope, true
}

// Snapshot copies all four fields at once.
func (s *Session) Snapshot() Snapshot {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.snapshotLocked()
}

// CanEnter evaluates the guard for stage against the current fields.
func (s *Session) CanEnter(stage Stage) bool {
	return CanEnter(stage, s.Snapshot())
}

// Redirect returns where a caller asking for stage should be sent.
func (s *Session) Redirect(stage Stage) Stage {
	return Redirect(stage, s.Snapshot())
}

// InFlight reports whether a processor call for stage is pending.
func (s *Session) InFlight(stage Stage) bool {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.inflight[stage] != nil
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		File:        cloneFile(s.file),
		Translation: cloneTranslation(s.translation),
		Features:    cloneFeatures(s.features),
		Scope:       cloneScope(s.scope),
	}
}

// mirrorLocked resets the session to rec's stored fields. A nil rec clears it.
func (s *Session) mirrorLocked(rec *DocumentRecord) {
	s.resetLocked()
	if rec == nil {
		return
	}
	s.file = cloneFile(&rec.File)
	s.translation = cloneTranslation(rec.Translation)
	s.features = cloneFeatures(rec.Features)
	s.scope = cloneScope(rec.Scope)
}

func (s *Session) resetLocked() {
	for stage := range s.inflight {
		s.supersedeLocked(stage)
	}
	s.file = nil
	s.translation = nil
	s.features = nil
	s.scope = nil
}

func (s *Session) setTranslationLocked(out TranslationOutput) {
	s.translation = cloneTranslation(&out)
	s.store.writeThroughLocked(func(rec *DocumentRecord) {
		rec.Translation = cloneTranslation(&out)
	})
}

func (s *Session) setFeaturesLocked(out FeatureList) {
	s.features = cloneFeatures(&out)
	s.store.writeThroughLocked(func(rec *DocumentRecord) {
		rec.Features = cloneFeatures(&out)
	})
}

func (s *Session) setScopeLocked(out ScopeOutput) {
	s.scope = cloneScope(&out)
	s.store.writeThroughLocked(func(rec *DocumentRecord) {
		rec.Scope = cloneScope(&out)
	})
}

// beginLocked registers a new invocation for stage, cancelling the one it
// replaces.
func (s *Session) beginLocked(stage Stage, cancel context.CancelFunc) *invocation {
	s.supersedeLocked(stage)
	s.seq++
	inv := &invocation{
		id:         s.seq,
		documentID: s.store.currentID,
		cancel:     cancel,
	}
	s.inflight[stage] = inv
	return inv
}

// finishLocked unregisters inv and reports whether it was still the live
// invocation for stage.
func (s *Session) finishLocked(stage Stage, inv *invocation) bool {
	if s.inflight[stage] != inv {
		return false
	}
	delete(s.inflight, stage)
	return true
}

func (s *Session) supersedeLocked(stage Stage) {
	inv := s.inflight[stage]
	if inv == nil {
		return
	}
	delete(s.inflight, stage)
	inv.cancel()
}
