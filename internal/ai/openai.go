package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI completes prompts through the OpenAI Chat Completions API.
type OpenAI struct {
	client    openai.Client
	model     openai.ChatModel
	maxTokens int64
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts Options) *OpenAI {
	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	return &OpenAI{
		client:    openai.NewClient(clientOpts...),
		model:     openai.ChatModel(model),
		maxTokens: int64(maxTokens),
	}
}

// Name identifies the provider.
func (o *OpenAI) Name() string { return "openai" }

// Complete returns the completion text for a prompt.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               o.model,
		MaxCompletionTokens: openai.Int(o.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
