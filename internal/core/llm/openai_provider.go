package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/precisesoft/DocQueryAI/internal/core"
)

// OpenAIProvider talks to any OpenAI-compatible server (LM Studio, Ollama's
// /v1 surface, OpenAI itself) for embeddings and streaming chat completions.
type OpenAIProvider struct {
	client     openai.Client
	embedModel string
	chatModel  string
}

// NewOpenAIProvider builds a provider against baseURL. apiKey may be empty
// for local servers that do not check it.
func NewOpenAIProvider(baseURL, apiKey, embedModel, chatModel string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		embedModel: embedModel,
		chatModel:  chatModel,
	}
}

// EmbedTexts vectorizes all texts in one request.
func (p *OpenAIProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response size mismatch: got %d want %d", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// StreamChat opens a streaming completion and forwards content deltas to the
// callback as they arrive. Returns nil on clean stream end.
func (p *OpenAIProvider) StreamChat(ctx context.Context, systemPrompt, userPrompt string, deltas func(string) error) error {
	stream := p.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.7),
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if err := deltas(content); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	return nil
}

var (
	_ core.EmbeddingProvider = (*OpenAIProvider)(nil)
	_ core.LLMProvider       = (*OpenAIProvider)(nil)
)
