package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/rfpworkbench/internal/models"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

type pageTranslator struct {
	got pipeline.FileRef
	err error
}

func (p *pageTranslator) Translate(_ context.Context, file pipeline.FileRef) (pipeline.TranslationOutput, error) {
	p.got = file
	if p.err != nil {
		return pipeline.TranslationOutput{}, p.err
	}
	return pipeline.TranslationOutput{Text: "# Page " + file.Name}, nil
}

func TestPageWorkerFeedsAggregation(t *testing.T) {
	blobs := newMemBlobStore()
	tr := &pageTranslator{}
	worker := NewPageWorker(tr, blobs, "translated", quietLogger())

	for _, page := range []int{2, 1} {
		res, err := worker.Process(context.Background(), &models.PageTranslatorRequest{
			DocumentID: "key-1",
			PageNumber: page,
			GCSUri:     "gs://split/" + pageObject("key-1", page),
		})
		require.NoError(t, err)
		assert.Equal(t, "success", res.Status)
		assert.Equal(t, "gs://translated/"+markdownPageObject("key-1", page), res.OutputGCSUri)
	}
	assert.Equal(t, "gs://split/key-1/00001.pdf", tr.got.URI)
	assert.Equal(t, markdownContentType, blobs.types["gs://translated/key-1/00001.md"])

	markdown, pages, err := aggregateMarkdown(context.Background(), blobs, "translated", "key-1/")
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Equal(t, "# Page 00001.pdf\n\n---\n\n# Page 00002.pdf", markdown)
}

func TestPageWorkerErrors(t *testing.T) {
	worker := NewPageWorker(&pageTranslator{}, newMemBlobStore(), "translated", quietLogger())
	_, err := worker.Process(context.Background(), &models.PageTranslatorRequest{DocumentID: "key-1", GCSUri: "gs://split/key-1/00001.pdf"})
	assert.Error(t, err)

	boom := errors.New("model unavailable")
	worker = NewPageWorker(&pageTranslator{err: boom}, newMemBlobStore(), "translated", quietLogger())
	_, err = worker.Process(context.Background(), &models.PageTranslatorRequest{DocumentID: "key-1", PageNumber: 1, GCSUri: "gs://split/key-1/00001.pdf"})
	assert.ErrorIs(t, err, boom)

	blobs := newMemBlobStore()
	blobs.putErr = errors.New("bucket unavailable")
	worker = NewPageWorker(&pageTranslator{}, blobs, "translated", quietLogger())
	_, err = worker.Process(context.Background(), &models.PageTranslatorRequest{DocumentID: "key-1", PageNumber: 1, GCSUri: "gs://split/key-1/00001.pdf"})
	assert.ErrorIs(t, err, blobs.putErr)
}
