package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultModel is used when VERTEX_MODEL is not set.
const DefaultModel = "gemini-1.5-pro"

// --- Translator Model Prompts ---
const TranslatorSystemPrompt = "You are a document parser and markdown translator for requests for proposal. Your task is to read a PDF document and translate it into clean, faithful markdown. Accuracy, detail, and information preservation are of utmost importance."
const TranslatorUserPrompt = `You will be provided with an RFP document as a PDF.

Translate its content into markdown following these rules:

Text: Carry all body text across as markdown text, translated into English where the source is in another language.
Lists: Keep every list as a markdown list with its original nesting.
Tables: Render tables as markdown tables. Where cells are merged, repeat the parent cell's content in each child cell so no information is lost.
Images: Replace each image with a precise description of what it shows.
Headers and Footers: Drop page numbers, running headers, logos and addresses that repeat on every page.

Return ONLY the markdown. Do not add commentary before or after it.`

// --- Feature Model Prompts ---
const FeatureSystemPrompt = "You are a requirements analyst. Your task is to read a translated RFP and list the distinct features and requirements a bidder would have to deliver. You must output your response as a valid JSON array of strings."
const FeatureUserPrompt = `Read the translated RFP below, using the attached PDF only to resolve ambiguities.

Rules:
1.  Each array element is one feature or requirement phrased as a short noun phrase, for example "Multi-factor authentication support".
2.  Keep the order in which the requirements appear in the document.
3.  Do not merge separate requirements into one element, and do not invent requirements that are not in the document.
4.  The output MUST be a single JSON array of strings with no text before or after it.

Translated RFP:
`

// --- Scope Model Prompts ---
const ScopeSystemPrompt = "You are a solutions architect writing a scope of work. Your task is to turn a list of required features into a structured, markdown scope-of-work document."
const ScopeUserPrompt = `Write a scope of work in markdown that covers every feature listed below.

Use exactly these top-level sections, in order:
# Scope of Work
## Project Overview
## Core Deliverables (grouped into numbered subsections)
## Technical Requirements
## Timeline & Milestones
## Success Criteria

State in Technical Requirements how many features are in scope. Return ONLY the markdown, without backtick fences.

Features:
`

// VertexClient holds the pre-configured generative models for each stage.
type VertexClient struct {
	TranslatorModel *genai.GenerativeModel
	FeatureModel    *genai.GenerativeModel
	ScopeModel      *genai.GenerativeModel
	baseClient      *genai.Client
}

// NewVertexClient creates a client holding the three stage models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	translatorModel := baseClient.GenerativeModel(modelName)
	translatorModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(TranslatorSystemPrompt)},
	}

	featureModel := baseClient.GenerativeModel(modelName)
	featureModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(FeatureSystemPrompt)},
	}
	featureModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	scopeModel := baseClient.GenerativeModel(modelName)
	scopeModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ScopeSystemPrompt)},
	}
	scopeModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.2),
	}

	return &VertexClient{
		TranslatorModel: translatorModel,
		FeatureModel:    featureModel,
		ScopeModel:      scopeModel,
		baseClient:      baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
