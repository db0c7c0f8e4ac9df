package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pagesum/internal/domain"
	"pagesum/internal/markdown"
	"pagesum/internal/prompt"
	"pagesum/internal/summarizer"

	"github.com/google/uuid"
)

// PageExtractor fetches a page and returns its visible text.
type PageExtractor interface {
	Extract(ctx context.Context, rawURL string) (domain.Page, error)
}

// Service runs one summarize cycle: prompt, remote call, render.
type Service struct {
	summarizer      summarizer.Summarizer
	extractor       PageExtractor
	defaultLanguage string
	log             *slog.Logger
}

func New(
	s summarizer.Summarizer,
	extractor PageExtractor,
	defaultLanguage string,
	log *slog.Logger,
) *Service {
	defaultLanguage = strings.TrimSpace(defaultLanguage)
	if defaultLanguage == "" {
		defaultLanguage = prompt.DefaultLanguage
	}

	return &Service{
		summarizer:      s,
		extractor:       extractor,
		defaultLanguage: defaultLanguage,
		log:             log,
	}
}

// Summarize makes exactly one summarizer call. Summarizer failures are
// returned unwrapped so callers can inspect their kind.
func (s *Service) Summarize(ctx context.Context, req domain.SummaryRequest) (*domain.Summary, error) {
	language := strings.TrimSpace(req.TargetLanguage)
	if language == "" {
		language = s.defaultLanguage
	}

	requestID := uuid.NewString()
	start := time.Now()

	text, err := s.summarizer.Summarize(ctx, summarizer.Input{
		Prompt: prompt.Build(req.SourceText, language),
		APIKey: req.APIKey,
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to summarize",
			"error", err,
			"requestID", requestID,
			"language", language,
			"sourceLength", len(req.SourceText),
			"durationMs", time.Since(start).Milliseconds())

		return nil, err
	}

	s.log.InfoContext(ctx, "Summary is generated",
		"requestID", requestID,
		"language", language,
		"sourceLength", len(req.SourceText),
		"summaryLength", len(text),
		"durationMs", time.Since(start).Milliseconds())

	return &domain.Summary{
		Text:     text,
		HTML:     markdown.Render(text),
		Language: language,
	}, nil
}

// SummarizeURL extracts rawURL and summarizes its text. A blank apiKey fails
// before the page is fetched.
func (s *Service) SummarizeURL(
	ctx context.Context,
	rawURL string,
	language string,
	apiKey string,
) (*domain.Page, *domain.Summary, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil, summarizer.NewMissingCredential()
	}

	if s.extractor == nil {
		return nil, nil, fmt.Errorf("extract page: %w", ErrNoExtractor)
	}

	page, err := s.extractor.Extract(ctx, rawURL)
	if err != nil {
		return nil, nil, &ExtractError{URL: rawURL, Err: err}
	}

	summary, err := s.Summarize(ctx, domain.SummaryRequest{
		SourceText:     page.Text,
		TargetLanguage: language,
		APIKey:         apiKey,
	})
	if err != nil {
		return &page, nil, err
	}

	return &page, summary, nil
}
