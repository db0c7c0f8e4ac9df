package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	DefaultOpenAIModel = "gpt-5-mini"

	openAIMaxOutputTokens int64 = 2048
	defaultOpenAITimeout        = 60 * time.Second
)

// OpenAIConfig configures OpenAISummarizer. Zero values fall back to defaults.
type OpenAIConfig struct {
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	model   string
	options []option.RequestOption
}

// NewOpenAISummarizer builds a new summarizer instance. The API key is
// supplied per call through Input.
func NewOpenAISummarizer(cfg OpenAIConfig) *OpenAISummarizer {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAISummarizer{
		model:   model,
		options: opts,
	}
}

// Summarize sends the prompt as a single Responses API request.
func (s *OpenAISummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	apiKey := strings.TrimSpace(input.APIKey)
	if apiKey == "" {
		return "", NewMissingCredential()
	}

	opts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, s.options...)
	client := openai.NewClient(opts...)

	resp, err := client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           openai.ChatModel(s.model),
		MaxOutputTokens: openai.Int(openAIMaxOutputTokens),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(input.Prompt),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", newRemoteError(apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
		}
		return "", fmt.Errorf("do request: %w", err)
	}

	if resp.Status == "incomplete" {
		return "", newUnparsableResponse(
			fmt.Errorf("response is incomplete (reason = %s)", resp.IncompleteDetails.Reason),
		)
	}

	summary := cleanOutput(resp.OutputText())
	if summary == "" {
		return "", newUnparsableResponse(fmt.Errorf("output text is missing (status = %s)", resp.Status))
	}

	return summary, nil
}
