package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pagesum/internal/markdown"
	"pagesum/internal/page"
	"pagesum/internal/pipeline"
	"pagesum/internal/summarizer"
)

func (b *Bot) handleMessage(ctx context.Context, chatID int64, userID int64, text string) error {
	text = strings.TrimSpace(text)

	return b.withSpinner(ctx, chatID, func() error {
		command, args := splitCommand(text)

		switch command {
		case "/start", "/help":
			return b.sendMessage(ctx, chatID, welcomeText)
		case "/language":
			return b.handleLanguageCommand(ctx, args, chatID, userID)
		case "/watch":
			return b.handleWatchCommand(ctx, args, chatID, userID)
		case "/unwatch":
			return b.handleUnwatchCommand(ctx, args, chatID, userID)
		case "/list":
			return b.handleListCommand(ctx, chatID, userID)
		case "/digest":
			return b.handleDigestCommand(ctx, args, chatID, userID)
		default:
			return b.handleRandomText(ctx, text, chatID, userID)
		}
	})
}

// splitCommand returns the leading /command (without a @botname suffix) and
// the rest of the text. Non-command text yields an empty command.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	command, args, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")

	return strings.ToLower(command), strings.TrimSpace(args)
}

// handleRandomText summarizes every URL in text. Each URL is an independent
// summarize cycle with its own reply, split when it is longer than one
// Telegram message.
func (b *Bot) handleRandomText(ctx context.Context, text string, chatID int64, userID int64) error {
	urls, err := page.FindURLs(text)

	if len(urls) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("find URLs: %w", err))
		}

		if sendErr := b.sendMessage(ctx, chatID, noURLsText); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	settings, err := b.db.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return errors.Join(
			fmt.Errorf("get user settings with default: %w", err),
			b.sendMessage(ctx, chatID, failedText),
		)
	}

	var errs []error

	for _, rawURL := range urls {
		p, summary, err := b.summarizer.SummarizeURL(ctx, rawURL, settings.Language, b.apiKey)

		var message string
		if err != nil {
			b.log.WarnContext(ctx, "Failed to summarize URL",
				"error", err,
				"url", rawURL,
				"userID", userID)

			message = formatFailure(rawURL, err)
		} else {
			message = formatSummary(p.Title, rawURL, summary.Text)
		}

		for _, part := range splitMessages("", "", []string{message}) {
			if err = b.sendMessage(ctx, chatID, part); err != nil {
				errs = append(errs, fmt.Errorf("send message: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

func formatSummary(title string, rawURL string, summaryText string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = rawURL
	}

	return fmt.Sprintf("📌 *[%s](%s)*\n\n%s",
		markdown.EscapeV2(title),
		escapeLinkURL(rawURL),
		markdown.TelegramV2(summaryText))
}

func formatFailure(rawURL string, err error) string {
	return fmt.Sprintf("❌ [%s](%s)\n\n%s",
		markdown.EscapeV2(rawURL),
		escapeLinkURL(rawURL),
		markdown.EscapeV2(userMessage(err)))
}

// userMessage is the failure text shown to the user.
func userMessage(err error) string {
	var sumErr *summarizer.Error
	if errors.As(err, &sumErr) {
		return "Error: " + sumErr.Message
	}

	var extractErr *pipeline.ExtractError
	if errors.As(err, &extractErr) {
		return "Error: could not read the page"
	}

	return "Error: something went wrong"
}

// escapeLinkURL escapes the characters MarkdownV2 reserves inside (...).
func escapeLinkURL(rawURL string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(rawURL)
}
