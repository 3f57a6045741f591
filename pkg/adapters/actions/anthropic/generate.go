// Package anthropic contributes the llm.generate action: a text generation
// call against the Anthropic Messages API, surfaced as a regular registry
// action so workflows can mix LLM steps with ordinary service calls.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/elitedynamics/stepflow/internal/domain"
)

const defaultModel = "claude-sonnet-4-20250514"

const paramSchema = `{
	"type": "object",
	"required": ["prompt"],
	"properties": {
		"prompt": {"type": "string", "minLength": 1},
		"model": {"type": "string"},
		"max_tokens": {"type": "integer", "minimum": 1},
		"system": {"type": "string"}
	}
}`

// Spec describes the llm.generate action contract.
func Spec() domain.ActionSpec {
	return domain.ActionSpec{
		Name:        "llm.generate",
		Service:     "anthropic",
		Description: "Generate text with the Anthropic Messages API",
		ParamSchema: []byte(paramSchema),
	}
}

// Generate returns the llm.generate action function. The API key comes from
// the credential provider at invocation time, so key rotation needs no
// process restart.
func Generate() domain.ActionFunc {
	return func(ctx context.Context, creds domain.Credentials, params map[string]interface{}) (interface{}, error) {
		apiKey := creds["api_key"]
		if apiKey == "" {
			return nil, domain.NewActionError(domain.ErrKindUnauthorized, "anthropic api key is not configured")
		}

		prompt, _ := params["prompt"].(string)
		model := defaultModel
		if m, ok := params["model"].(string); ok && m != "" {
			model = m
		}
		maxTokens := int64(1024)
		if mt, ok := params["max_tokens"].(float64); ok && mt > 0 {
			maxTokens = int64(mt)
		}

		body := sdk.MessageNewParams{
			Model:     sdk.Model(model),
			MaxTokens: maxTokens,
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
			},
		}
		if system, ok := params["system"].(string); ok && system != "" {
			body.System = []sdk.TextBlockParam{{Text: system}}
		}

		client := sdk.NewClient(option.WithAPIKey(apiKey))
		msg, err := client.Messages.New(ctx, body)
		if err != nil {
			return nil, classify(err)
		}

		var text strings.Builder
		for _, block := range msg.Content {
			text.WriteString(block.Text)
		}
		return map[string]interface{}{
			"text":          text.String(),
			"model":         string(msg.Model),
			"stop_reason":   string(msg.StopReason),
			"input_tokens":  msg.Usage.InputTokens,
			"output_tokens": msg.Usage.OutputTokens,
		}, nil
	}
}

// classify maps Anthropic API failures onto the action error taxonomy.
func classify(err error) *domain.ActionError {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return domain.NewActionError(domain.ErrKindUnauthorized, apierr.Error())
		case apierr.StatusCode == 429:
			return domain.NewActionError(domain.ErrKindRateLimited, apierr.Error())
		case apierr.StatusCode >= 500:
			return domain.NewActionError(domain.ErrKindUpstreamUnavailable, apierr.Error())
		default:
			return domain.NewActionError(domain.ErrKindInvalidInput, apierr.Error())
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewActionError(domain.ErrKindTimeout, err.Error())
	}
	return domain.NewActionError(domain.ErrKindUpstreamUnavailable, fmt.Sprintf("anthropic request failed: %v", err))
}
