package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every completion call. Enhancement is an optional
// path; a hung upstream must degrade the analysis, not fail it.
const DefaultTimeout = 30 * time.Second

type LLMClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration

	// enabled is false when no credential was configured at startup. All
	// calls then short-circuit so callers can fall back to deterministic
	// output.
	enabled bool
}

func NewLLMClient(url, model string) *LLMClient {
	options := []option.RequestOption{}
	if url != "" {
		options = append(options, option.WithBaseURL(url))
	}

	enabled := true
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Info("OPENAI_API_KEY environment variable is not set, AI insight enhancement will be disabled")
		enabled = false
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(options...)
	return &LLMClient{client: &client, model: model, timeout: DefaultTimeout, enabled: enabled}
}

// Enabled reports whether a credential was configured.
func (llm *LLMClient) Enabled() bool {
	return llm.enabled
}

func (llm *LLMClient) Chat(ctx context.Context, instructions, data string) (string, error) {
	return llm.complete(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(data),
		},
		Model: llm.model,
	})
}

// ChatJSON requests a machine-parseable JSON object response with a bounded
// token budget and low sampling temperature, suited to analysis prompts that
// are reconciled against deterministic output.
func (llm *LLMClient) ChatJSON(ctx context.Context, instructions, data string, maxTokens int64, temperature float64) (string, error) {
	return llm.complete(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(data),
		},
		Model:       llm.model,
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
}

func (llm *LLMClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	if !llm.enabled {
		return "", fmt.Errorf("no LLM credential configured")
	}

	ctx, cancel := context.WithTimeout(ctx, llm.timeout)
	defer cancel()

	resp, err := llm.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("client didn't return any content choices")
	}

	return resp.Choices[0].Message.Content, nil
}
