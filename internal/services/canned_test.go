package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

func TestCannedProcessors(t *testing.T) {
	ctx := context.Background()
	p := CannedProcessors(0)

	tr, err := p.Translator.Translate(ctx, testFile)
	require.NoError(t, err)
	assert.Equal(t, CannedTranslation, tr.Text)

	features, err := p.Features.ExtractFeatures(ctx, testFile, tr)
	require.NoError(t, err)
	assert.Equal(t, CannedFeatures, features.Items)

	features.Items[0] = "mutated"
	assert.Equal(t, "Multi-factor authentication support", CannedFeatures[0])

	scope, err := p.Scope.SynthesizeScope(ctx, pipeline.FeatureList{Items: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(scope.Markdown, "# Scope of Work"))
	assert.Contains(t, scope.Markdown, "Implementation of all 3 identified features")
}

func TestCannedProcessorsHonourCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CannedTranslator{Delay: time.Hour}.Translate(ctx, testFile)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = CannedScopeSynthesizer{}.SynthesizeScope(ctx, pipeline.FeatureList{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCannedDelay(t *testing.T) {
	start := time.Now()
	_, err := CannedFeatureExtractor{Delay: 20 * time.Millisecond}.ExtractFeatures(context.Background(), testFile, pipeline.TranslationOutput{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
