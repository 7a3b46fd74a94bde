package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/rfpworkbench/internal/gcp"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// VertexFeatureExtractor asks Gemini for the document's feature list as a
// JSON array of strings.
type VertexFeatureExtractor struct {
	model contentGenerator
	log   *slog.Logger
}

// NewVertexFeatureExtractor uses the client's JSON-mode feature model.
func NewVertexFeatureExtractor(client *gcp.VertexClient, logger *slog.Logger) *VertexFeatureExtractor {
	return &VertexFeatureExtractor{model: client.FeatureModel, log: logger}
}

// ExtractFeatures implements pipeline.FeatureExtractor.
func (e *VertexFeatureExtractor) ExtractFeatures(ctx context.Context, file pipeline.FileRef, translation pipeline.TranslationOutput) (pipeline.FeatureList, error) {
	logCtx := e.log.With("fileUri", file.URI, "stage", pipeline.StageFeatures.String())
	logCtx.Info("Starting feature extraction.")

	prompt := genai.Text(gcp.FeatureUserPrompt + translation.Text)
	resp, err := e.model.GenerateContent(ctx, pdfPart(file.URI), prompt)
	if err != nil {
		logCtx.Error("Call to Vertex AI for feature extraction failed", "error", err)
		return pipeline.FeatureList{}, fmt.Errorf("failed to generate features from gemini: %w", err)
	}

	jsonString, _ := responseText(resp, "json")
	if jsonString == "" {
		err := fmt.Errorf("gemini returned an empty response instead of a JSON array")
		logCtx.Error("Empty response from Gemini", "error", err)
		return pipeline.FeatureList{}, err
	}

	items, err := parseFeatures(jsonString)
	if err != nil {
		logCtx.Error("Failed to unmarshal JSON response from Gemini", "error", err, "responseBody", jsonString)
		return pipeline.FeatureList{}, err
	}
	if len(items) == 0 {
		logCtx.Warn("Model returned a valid but empty JSON array.")
	}

	logCtx.Info("Feature extraction complete.", "featureCount", len(items))
	return pipeline.FeatureList{Items: items}, nil
}

// parseFeatures decodes a JSON array of strings, dropping blank entries but
// keeping order and duplicates.
func parseFeatures(raw string) ([]string, error) {
	var decoded []string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse feature list from model: %w", err)
	}
	items := make([]string, 0, len(decoded))
	for _, item := range decoded {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items, nil
}
