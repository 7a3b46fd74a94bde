package services

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/rfpworkbench/internal/gcp"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// VertexTranslator translates an uploaded PDF into markdown with Gemini.
type VertexTranslator struct {
	model contentGenerator
	log   *slog.Logger
}

// NewVertexTranslator uses the client's translator model.
func NewVertexTranslator(client *gcp.VertexClient, logger *slog.Logger) *VertexTranslator {
	return &VertexTranslator{model: client.TranslatorModel, log: logger}
}

// Translate implements pipeline.Translator.
func (t *VertexTranslator) Translate(ctx context.Context, file pipeline.FileRef) (pipeline.TranslationOutput, error) {
	logCtx := t.log.With("fileUri", file.URI, "stage", pipeline.StageTranslate.String())
	logCtx.Info("Starting translation.")

	resp, err := t.model.GenerateContent(ctx, pdfPart(file.URI), genai.Text(gcp.TranslatorUserPrompt))
	if err != nil {
		logCtx.Error("Call to Vertex AI for translation failed", "error", err)
		return pipeline.TranslationOutput{}, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	markdown, parts := responseText(resp, "markdown")
	if parts > 1 {
		logCtx.Warn("Gemini response contained several text parts; they have been concatenated.", "parts", parts)
	}
	if err := checkRefusal(markdown); err != nil {
		logCtx.Error("LLM refusal detected", "error", err, "response", markdown)
		return pipeline.TranslationOutput{}, err
	}
	if markdown == "" {
		logCtx.Warn("No markdown content extracted from response. Treating as an empty document.")
	}

	logCtx.Info("Translation complete.", "chars", len(markdown))
	return pipeline.TranslationOutput{Text: markdown}, nil
}
