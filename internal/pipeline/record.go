package pipeline

import (
	"slices"
	"time"
)

// FileRef is a handle to an uploaded document's content. The pipeline never
// looks inside it; the record that holds it owns it exclusively.
type FileRef struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	// Checksum is informational. Documents are never deduplicated by it.
	Checksum string `json:"checksum,omitempty"`
}

// TranslationOutput is what the translate stage produced.
type TranslationOutput struct {
	Text       string    `json:"text"`
	ProducedAt time.Time `json:"producedAt"`
}

// FeatureList is what the features stage produced. Items keep extraction
// order and may contain duplicates.
type FeatureList struct {
	Items      []string  `json:"items"`
	ProducedAt time.Time `json:"producedAt"`
}

// Len reports the number of extracted features.
func (f FeatureList) Len() int { return len(f.Items) }

func (f FeatureList) clone() FeatureList {
	f.Items = slices.Clone(f.Items)
	return f
}

// ScopeOutput is the scope-of-work document produced by the scope stage.
type ScopeOutput struct {
	Markdown   string    `json:"markdown"`
	ProducedAt time.Time `json:"producedAt"`
}

// DocumentRecord is one uploaded document and the outputs accumulated for it.
// Nil output fields mean the stage has not produced anything for the record.
type DocumentRecord struct {
	ID          string
	File        FileRef
	Name        string
	UploadedAt  time.Time
	Translation *TranslationOutput
	Features    *FeatureList
	Scope       *ScopeOutput
}

// clone returns a deep copy so callers outside the store cannot reach its
// internal state.
func (r *DocumentRecord) clone() DocumentRecord {
	out := *r
	out.Translation = cloneTranslation(r.Translation)
	out.Features = cloneFeatures(r.Features)
	out.Scope = cloneScope(r.Scope)
	return out
}

// Summary is the read-only view of a record shown in the history list.
type Summary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	UploadedAt     time.Time `json:"uploadedAt"`
	Current        bool      `json:"current"`
	HasTranslation bool      `json:"hasTranslation"`
	HasFeatures    bool      `json:"hasFeatures"`
	HasScope       bool      `json:"hasScope"`
}

func cloneFile(f *FileRef) *FileRef {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTranslation(t *TranslationOutput) *TranslationOutput {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFeatures(f *FeatureList) *FeatureList {
	if f == nil {
		return nil
	}
	v := f.clone()
	return &v
}

func cloneScope(s *ScopeOutput) *ScopeOutput {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
