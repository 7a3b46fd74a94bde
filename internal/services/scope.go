package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/rfpworkbench/internal/export"
	"github.com/Lllllllleong/rfpworkbench/internal/gcp"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// VertexScopeSynthesizer writes the scope of work from the feature list.
type VertexScopeSynthesizer struct {
	model contentGenerator
	log   *slog.Logger
}

// NewVertexScopeSynthesizer uses the client's scope model.
func NewVertexScopeSynthesizer(client *gcp.VertexClient, logger *slog.Logger) *VertexScopeSynthesizer {
	return &VertexScopeSynthesizer{model: client.ScopeModel, log: logger}
}

// SynthesizeScope implements pipeline.ScopeSynthesizer.
func (s *VertexScopeSynthesizer) SynthesizeScope(ctx context.Context, features pipeline.FeatureList) (pipeline.ScopeOutput, error) {
	logCtx := s.log.With("stage", pipeline.StageScope.String(), "featureCount", features.Len())
	logCtx.Info("Starting scope synthesis.")

	prompt := genai.Text(gcp.ScopeUserPrompt + export.FeatureListText(features))
	resp, err := s.model.GenerateContent(ctx, prompt)
	if err != nil {
		logCtx.Error("Call to Vertex AI for scope synthesis failed", "error", err)
		return pipeline.ScopeOutput{}, fmt.Errorf("failed to generate scope from gemini: %w", err)
	}

	markdown, _ := responseText(resp, "markdown")
	if err := checkRefusal(markdown); err != nil {
		logCtx.Error("LLM refusal detected", "error", err, "response", markdown)
		return pipeline.ScopeOutput{}, err
	}
	if !strings.HasPrefix(markdown, "#") {
		err := fmt.Errorf("scope response is not a markdown document")
		logCtx.Error("Unexpected scope response", "error", err, "response", markdown)
		return pipeline.ScopeOutput{}, err
	}

	logCtx.Info("Scope synthesis complete.", "chars", len(markdown))
	return pipeline.ScopeOutput{Markdown: markdown}, nil
}
