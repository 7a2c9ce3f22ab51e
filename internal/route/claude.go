package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"
)

// ModelHaiku is the default classification model. Label-picking is a tiny
// task; the small model is plenty.
const ModelHaiku = "claude-3-haiku-20240307"

// ClaudeConfig holds Claude classifier configuration.
type ClaudeConfig struct {
	// Model to use (defaults to Haiku).
	Model string

	// Max tokens for output.
	MaxTokens int

	// Retry settings.
	MaxRetries     int
	RetryBaseDelay time.Duration

	// API key (if empty, uses the ANTHROPIC_API_KEY env var).
	APIKey string
}

// DefaultClaudeConfig returns sensible defaults.
func DefaultClaudeConfig() *ClaudeConfig {
	return &ClaudeConfig{
		Model:          ModelHaiku,
		MaxTokens:      100,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

// ClaudeClassifier delegates label selection to the Anthropic API. Errors
// never propagate past the Router or approval boundaries; callers degrade to
// the default label on any failure.
type ClaudeClassifier struct {
	cfg    *ClaudeConfig
	client anthropic.Client
}

// NewClaudeClassifier creates a Claude-backed classifier.
func NewClaudeClassifier(cfg *ClaudeConfig) (*ClaudeClassifier, error) {
	if cfg == nil {
		cfg = DefaultClaudeConfig()
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("route: no API key: set ANTHROPIC_API_KEY")
	}
	return &ClaudeClassifier{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Classify asks the model to pick one label, retrying transient failures
// with exponential backoff.
func (c *ClaudeClassifier) Classify(ctx context.Context, text string, labels []string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("route: no labels supplied")
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		label, err := c.doRequest(ctx, text, labels)
		if err == nil {
			return label, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("route: max retries exceeded: %w", lastErr)
}

func (c *ClaudeClassifier) doRequest(ctx context.Context, text string, labels []string) (string, error) {
	model := c.cfg.Model
	if model == "" {
		model = ModelHaiku
	}
	maxTokens := c.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 100
	}

	system := fmt.Sprintf(
		"You classify a user message into exactly one label. Labels: %s. "+
			"Respond with only a JSON object of the form {\"label\": \"<label>\"}.",
		strings.Join(labels, ", "))

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("route: classify request: %w", err)
	}

	var raw strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}

	out := raw.String()
	if label := gjson.Get(out, "label").String(); label != "" {
		for _, l := range labels {
			if strings.EqualFold(label, l) {
				return l, nil
			}
		}
	}
	// Model ignored the format; scan the reply for a known label.
	lowered := strings.ToLower(out)
	for _, l := range labels {
		if strings.Contains(lowered, strings.ToLower(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("route: classify: no label in reply %q", out)
}

// isRetryable checks if an error should be retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429") {
		return true
	}
	if strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") {
		return true
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") {
		return true
	}
	return false
}
