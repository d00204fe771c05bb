// Package llm asks an OpenAI-compatible endpoint for trial payloads when no
// precomputed response exists.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/trustgate/internal/llm/prompts"
	"github.com/pavelanni/trustgate/internal/trial"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client and loads the embedded prompt templates.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}, nil
}

// Respond implements trial.Responder.
func (c *Client) Respond(ctx context.Context, e trial.Entry, _ string) (trial.Payload, error) {
	systemPrompt, err := prompts.Build(e)
	if err != nil {
		return trial.Payload{}, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: e.Text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return trial.Payload{}, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return trial.Payload{}, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question_id", e.ID, "raw", raw)
	return parsePayload(raw, e.Uncertainty)
}

// parsePayload decodes the model output and clamps the score into the band
// of the requested uncertainty level.
func parsePayload(raw string, level trial.Uncertainty) (trial.Payload, error) {
	var p trial.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return trial.Payload{}, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if p.Answer == "" {
		return trial.Payload{}, fmt.Errorf("LLM response has no answer (raw: %s)", raw)
	}
	lo, hi := prompts.ScoreRange(level)
	p.UncertaintyScore = max(lo, min(hi, p.UncertaintyScore))
	return p, nil
}

// Ping checks that the endpoint answers a model listing.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
