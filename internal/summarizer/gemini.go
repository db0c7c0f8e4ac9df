package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"

	defaultGeminiTimeout    = 60 * time.Second
	maxGeminiResponseLength = 4 << 20
)

// GeminiConfig configures GeminiSummarizer. Zero values fall back to defaults.
type GeminiConfig struct {
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeminiSummarizer calls the Gemini generateContent endpoint.
type GeminiSummarizer struct {
	model   string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func NewGeminiSummarizer(cfg GeminiConfig, log *slog.Logger) *GeminiSummarizer {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultGeminiTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &GeminiSummarizer{
		model:   model,
		baseURL: baseURL,
		client:  client,
		log:     log,
	}
}

// Summarize issues exactly one generateContent request. A blank API key
// fails with KindMissingCredential before any request is made.
func (s *GeminiSummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	apiKey := strings.TrimSpace(input.APIKey)
	if apiKey == "" {
		return "", NewMissingCredential()
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: input.Prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(apiKey), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", redactKey(err, apiKey))
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"model", s.model,
				"operation", "Summarize")
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGeminiResponseLength))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newRemoteError(resp.StatusCode, parseGeminiErrorMessage(respBody))
	}

	var parsed geminiResponse
	if err = json.Unmarshal(respBody, &parsed); err != nil {
		return "", newUnparsableResponse(err)
	}

	text, ok := parsed.text()
	if !ok {
		return "", newUnparsableResponse(nil)
	}

	return cleanOutput(text), nil
}

func (s *GeminiSummarizer) endpoint(apiKey string) string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		s.baseURL, url.PathEscape(s.model), url.QueryEscape(apiKey))
}

func (r *geminiResponse) text() (string, bool) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", false
	}

	text := r.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", false
	}

	return text, true
}

func parseGeminiErrorMessage(body []byte) string {
	var parsed geminiErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error == nil {
		return ""
	}
	return strings.TrimSpace(parsed.Error.Message)
}

// redactKey keeps the API key out of transport errors, which quote the URL.
func redactKey(err error, apiKey string) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	return &url.Error{
		Op:  urlErr.Op,
		URL: strings.ReplaceAll(urlErr.URL, url.QueryEscape(apiKey), "REDACTED"),
		Err: urlErr.Err,
	}
}
