package oracle

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// AnthropicOracle is the reference Oracle adapter, calling Claude with a
// single-turn user message and returning its raw text reply for the curator
// to pick a JSON object out of. The library client, not this adapter, owns
// retries and rate limiting.
type AnthropicOracle struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicOracle builds an Oracle backed by the Anthropic Messages API.
// model defaults to Claude's latest Sonnet tier when empty.
func NewAnthropicOracle(apiKey string, model anthropic.Model, maxTokens int64) *AnthropicOracle {
	if model == "" {
		model = anthropic.ModelClaude3_5SonnetLatest
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicOracle{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Ask sends prompt as a single user turn and returns the concatenated text
// of the reply's content blocks.
func (o *AnthropicOracle) Ask(ctx context.Context, prompt string) (string, error) {
	msg, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", radioerr.Wrap(radioerr.ExternalApi, "anthropic messages.new", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
