package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// contentGenerator is the part of *genai.GenerativeModel the processors use.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// refusalPhrases mark a model answer that declined the task instead of doing it.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// responseText concatenates the text parts of the first candidate and strips
// any code fence the model wrapped around them.
func responseText(resp *genai.GenerateContentResponse, fence string) (text string, parts int) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", 0
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
			parts++
		}
	}

	content := strings.TrimSpace(b.String())
	content = strings.TrimPrefix(content, "```"+fence)
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content), parts
}

// checkRefusal fails when the model's answer reads like a refusal.
func checkRefusal(content string) error {
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("model response indicates refusal (%q)", phrase)
		}
	}
	return nil
}

// pdfPart references an uploaded PDF by its gs:// uri.
func pdfPart(uri string) genai.Part {
	return genai.FileData{
		MIMEType: "application/pdf",
		FileURI:  uri,
	}
}
