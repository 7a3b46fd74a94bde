package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuards(t *testing.T) {
	file := &FileRef{URI: "gs://uploads/a.pdf"}
	translation := &TranslationOutput{Text: "T"}
	emptyTranslation := &TranslationOutput{}
	features := &FeatureList{Items: []string{"f"}}
	noFeatures := &FeatureList{}
	scope := &ScopeOutput{Markdown: "# S"}

	tests := []struct {
		name      string
		snap      Snapshot
		translate bool
		extract   bool
		scope     bool
	}{
		{name: "nothing", snap: Snapshot{}},
		{name: "file only", snap: Snapshot{File: file}, translate: true},
		{name: "file and translation", snap: Snapshot{File: file, Translation: translation}, translate: true, extract: true},
		{name: "empty translation text still counts", snap: Snapshot{File: file, Translation: emptyTranslation}, translate: true, extract: true},
		{name: "translation without file", snap: Snapshot{Translation: translation, Features: features}},
		{name: "features without translation", snap: Snapshot{File: file, Features: features}, translate: true, scope: true},
		{name: "empty feature list", snap: Snapshot{File: file, Translation: translation, Features: noFeatures}, translate: true, extract: true},
		{name: "everything", snap: Snapshot{File: file, Translation: translation, Features: features, Scope: scope}, translate: true, extract: true, scope: true},
		{name: "scope alone is not enough", snap: Snapshot{File: file, Scope: scope}, translate: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.translate, CanTranslate(tt.snap))
			assert.Equal(t, tt.extract, CanExtractFeatures(tt.snap))
			assert.Equal(t, tt.scope, CanSynthesizeScope(tt.snap))
			assert.True(t, CanEnter(StageUpload, tt.snap))
		})
	}
}

func TestFeaturesGuardIgnoresDownstreamState(t *testing.T) {
	file := &FileRef{URI: "gs://uploads/a.pdf"}
	translation := &TranslationOutput{Text: "T"}
	for _, features := range []*FeatureList{nil, {}, {Items: []string{"a"}}} {
		for _, scope := range []*ScopeOutput{nil, {Markdown: "m"}} {
			assert.False(t, CanExtractFeatures(Snapshot{File: file, Features: features, Scope: scope}))
			assert.True(t, CanExtractFeatures(Snapshot{File: file, Translation: translation, Features: features, Scope: scope}))
		}
	}
}

func TestRedirect(t *testing.T) {
	file := &FileRef{URI: "gs://uploads/a.pdf"}
	translation := &TranslationOutput{Text: "T"}
	features := &FeatureList{Items: []string{"f"}}

	assert.Equal(t, StageUpload, Redirect(StageScope, Snapshot{}))
	assert.Equal(t, StageTranslate, Redirect(StageScope, Snapshot{File: file}))
	assert.Equal(t, StageFeatures, Redirect(StageScope, Snapshot{File: file, Translation: translation}))
	assert.Equal(t, StageScope, Redirect(StageScope, Snapshot{File: file, Translation: translation, Features: features}))
	assert.Equal(t, StageTranslate, Redirect(StageFeatures, Snapshot{File: file}))
	assert.Equal(t, StageUpload, Redirect(StageTranslate, Snapshot{}))
	assert.Equal(t, StageUpload, Redirect(StageUpload, Snapshot{File: file}))
}

func TestParseStage(t *testing.T) {
	for _, stage := range append([]Stage{StageUpload}, ProcessingStages...) {
		got, err := ParseStage(stage.String())
		require.NoError(t, err)
		assert.Equal(t, stage, got)
	}
	_, err := ParseStage("summarize")
	assert.Error(t, err)
}
