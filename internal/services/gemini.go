package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiEnhancer rewrites prompts with a Gemini model.
type GeminiEnhancer struct {
	apiKey string
	model  string
}

func NewGeminiEnhancer(apiKey, model string) *GeminiEnhancer {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiEnhancer{apiKey: apiKey, model: model}
}

func (e *GeminiEnhancer) Enhance(ctx context.Context, basePrompt string, options map[string]string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create genai client: %w", err)
	}

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(enhancerInstructions),
		genai.NewPartFromText("Base prompt:"),
		genai.NewPartFromText(basePrompt),
		genai.NewPartFromText("Options JSON:"),
		genai.NewPartFromText(string(optionsJSON)),
		genai.NewPartFromText("Compose a final cinematic prompt now (single paragraph)."),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	log.Printf("[Gemini] Enhancing prompt (model=%s, baseLen=%d)", e.model, len(basePrompt))

	resp, err := client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini enhancement failed: %w", err)
	}

	result := strings.TrimSpace(resp.Text())
	if result == "" {
		return "", fmt.Errorf("gemini returned an empty enhancement")
	}
	return result, nil
}

var _ Enhancer = (*GeminiEnhancer)(nil)
