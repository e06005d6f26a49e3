package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIEnhancer rewrites prompts with an OpenAI chat model.
type OpenAIEnhancer struct {
	client *openai.Client
	model  string
}

func NewOpenAIEnhancer(apiKey, model string) *OpenAIEnhancer {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIEnhancer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (e *OpenAIEnhancer) Enhance(ctx context.Context, basePrompt string, options map[string]string) (string, error) {
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}

	userPrompt := fmt.Sprintf("Base prompt:\n%s\n\nOptions JSON:\n%s\n\nCompose a final cinematic prompt now (single paragraph).",
		basePrompt, optionsJSON)

	log.Printf("[OpenAI] Enhancing prompt (model=%s, baseLen=%d)", e.model, len(basePrompt))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: enhancerInstructions,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Temperature: 1.0,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	result := strings.TrimSpace(resp.Choices[0].Message.Content)
	if result == "" {
		return "", fmt.Errorf("openai returned an empty enhancement")
	}
	return result, nil
}

var _ Enhancer = (*OpenAIEnhancer)(nil)
