// Package pipeline tracks a document's progress through the translate,
// features and scope stages.
//
// A HistoryStore keeps the ten most recently uploaded documents together
// with whatever each stage produced for them, and owns the Session that
// mirrors the currently selected document. Guards decide whether a stage may
// be entered from a Session snapshot, and a Runner invokes the external stage
// processors and applies their results so that a superseded invocation can
// never overwrite a newer one.
//
// All state mutations are serialised by a single mutex shared by the store
// and its session; processor calls run outside of it.
package pipeline
