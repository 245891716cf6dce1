package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/shopagent/backend/internal/domain"
	"go.uber.org/zap"
)

// Client wraps the OpenAI API behind the domain LLMClient interface.
type Client struct {
	api            openai.Client
	defaultModel   string
	embeddingModel string
	logger         *zap.Logger
}

// Config holds the provider settings for the client.
type Config struct {
	APIKey         string
	BaseURL        string
	DefaultModel   string
	EmbeddingModel string
}

// NewClient creates a new language-model client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}

	return &Client{
		api:            openai.NewClient(opts...),
		defaultModel:   defaultModel,
		embeddingModel: embeddingModel,
		logger:         logger,
	}
}

// Generate runs a single completion and returns the raw text content.
func (c *Client) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
		},
		Temperature: openai.Float(0.2),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Warn("completion request failed",
			zap.String("model", model),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrLLMFailure, err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", domain.ErrEmptyLLMResponse
	}

	return completion.Choices[0].Message.Content, nil
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: c.embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		c.logger.Warn("embedding request failed",
			zap.Int("texts", len(texts)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrLLMFailure, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrLLMFailure, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}

	return vectors, nil
}
