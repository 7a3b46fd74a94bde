package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/rfpworkbench/internal/export"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

func TestExportPublisher(t *testing.T) {
	blobs := newMemBlobStore()
	p := NewExportPublisher(blobs, "exports", quietLogger())

	features := export.Features(pipeline.FeatureList{Items: []string{"SSO", "Audit log"}})
	scope := export.Scope(pipeline.ScopeOutput{Markdown: "# Scope"})

	uris, err := p.Publish(context.Background(), "doc-1", "run-1", features, scope)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		export.FeaturesFileName: "gs://exports/doc-1/run-1/" + export.FeaturesFileName,
		export.ScopeFileName:    "gs://exports/doc-1/run-1/" + export.ScopeFileName,
	}, uris)

	body, err := blobs.Read(context.Background(), uris[export.FeaturesFileName])
	require.NoError(t, err)
	assert.Equal(t, "1. SSO\n2. Audit log", string(body))
	assert.Equal(t, export.ScopeContentType, blobs.types[uris[export.ScopeFileName]])
}

func TestExportPublisherFailure(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.putErr = errors.New("bucket unavailable")
	p := NewExportPublisher(blobs, "exports", quietLogger())

	uris, err := p.Publish(context.Background(), "doc-1", "run-1", export.Scope(pipeline.ScopeOutput{Markdown: "# Scope"}))
	assert.ErrorIs(t, err, blobs.putErr)
	assert.Nil(t, uris)
}
