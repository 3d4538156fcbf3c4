package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"hotmic/internal/domain"
	"hotmic/internal/util"
)

const systemPrompt = `You match a spoken transcript to one command from a list.
Reply with JSON only: {"id":"<command id>"} for the single best match, or
{"id":""} when no command clearly matches. Never invent identifiers.`

// Config controls the classifier call.
type Config struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Classifier matches transcripts to command identifiers using a chat
// completion. It is stateless; every call carries the full command metadata.
type Classifier struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewClassifier(cfg Config) (*Classifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	return &Classifier{
		client:     openai.NewClient(cfg.APIKey),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Classify returns the matched command identifier, or "" when the model
// finds no match. API failures surface as errors so the router can engage
// its local fallback.
func (c *Classifier) Classify(ctx context.Context, transcript string, commands []domain.CommandInfo) (string, error) {
	if len(commands) == 0 {
		return "", nil
	}

	catalog, err := json.Marshal(commands)
	if err != nil {
		return "", fmt.Errorf("failed to encode command metadata: %w", err)
	}

	prompt := fmt.Sprintf("Commands:\n%s\n\nTranscript: %q", catalog, transcript)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(util.Backoff(c.retryDelay, attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		id, err := c.complete(ctx, prompt)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (c *Classifier) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("classification returned no choices")
	}

	var verdict struct {
		ID string `json:"id"`
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return "", fmt.Errorf("classification returned malformed verdict %q: %w", content, err)
	}
	return strings.TrimSpace(verdict.ID), nil
}
