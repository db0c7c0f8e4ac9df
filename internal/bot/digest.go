package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"pagesum/internal/domain"
	"pagesum/internal/prompt"
)

const telegramMessageMaxLength = 4096

const (
	digestHeader         = "📰 *Watched pages digest*\n\n"
	digestContinueHeader = "📰 *Watched pages digest \\(continue\\)*\n\n"
)

// SendDigest summarizes each watched page in the user's language and sends
// the result to the user's private chat. Every page is its own summarize
// cycle; one failing page does not stop the rest.
func (b *Bot) SendDigest(ctx context.Context, userID int64, pages []domain.WatchedPage) error {
	if len(pages) == 0 {
		return nil
	}

	var errs []error

	language := prompt.DefaultLanguage

	settings, err := b.db.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		errs = append(errs, fmt.Errorf("get user settings with default: %w", err))
	} else {
		language = settings.Language
	}

	entries := make([]string, 0, len(pages))

	for _, wp := range pages {
		p, summary, err := b.summarizer.SummarizeURL(ctx, wp.URL, language, b.apiKey)
		if err != nil {
			b.log.WarnContext(ctx, "Failed to summarize watched page",
				"error", err,
				"pageID", wp.ID,
				"url", wp.URL,
				"userID", userID)

			entries = append(entries, formatFailure(wp.URL, err))
			continue
		}

		title := wp.Title
		if p != nil && strings.TrimSpace(p.Title) != "" {
			title = p.Title
		}

		entries = append(entries, formatSummary(title, wp.URL, summary.Text))
	}

	for _, message := range splitMessages(digestHeader, digestContinueHeader, entries) {
		if err = b.sendMessage(ctx, userID, message); err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	}

	return errors.Join(errs...)
}

// splitMessages packs entries into as few messages as fit Telegram's length
// limit, each starting with header (continueHeader after the first). An entry
// too long for one message is split between lines, and a single line longer
// than a message is cut and sent as plain text.
func splitMessages(header string, continueHeader string, entries []string) []string {
	p := &messagePacker{continueHeader: continueHeader}
	p.reset(header)

	for _, entry := range entries {
		block := entry + "\n\n"

		if len(block) > p.room() && p.hasContent() {
			p.flush()
		}

		if len(block) <= p.room() {
			p.current.WriteString(block)
			continue
		}

		for _, line := range strings.Split(entry, "\n") {
			l := line + "\n"

			if len(l) > p.room() && p.hasContent() {
				p.flush()
			}

			if len(l) > p.room() {
				l = plainTruncate(line, p.room()-1) + "\n"
			}

			p.current.WriteString(l)
		}

		p.current.WriteString("\n")
	}

	if p.hasContent() {
		p.messages = append(p.messages, strings.TrimSpace(p.current.String()))
	}

	return p.messages
}

type messagePacker struct {
	messages       []string
	current        strings.Builder
	headerLength   int
	continueHeader string
}

func (p *messagePacker) reset(header string) {
	p.current.Reset()
	p.current.WriteString(header)
	p.headerLength = p.current.Len()
}

func (p *messagePacker) flush() {
	p.messages = append(p.messages, strings.TrimSpace(p.current.String()))
	p.reset(p.continueHeader)
}

func (p *messagePacker) hasContent() bool {
	return p.current.Len() > p.headerLength
}

func (p *messagePacker) room() int {
	return telegramMessageMaxLength - p.current.Len()
}

// entityMarkers open or close MarkdownV2 entities.
const entityMarkers = "*_~|[]()`"

// plainTruncate cuts the MarkdownV2 line s to at most n bytes and escapes any
// entity marker so no entity is left half open. Existing escapes are kept.
func plainTruncate(s string, n int) string {
	var b strings.Builder

	for i := 0; i < len(s); {
		var chunk string
		size := 1

		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			_, size = utf8.DecodeRuneInString(s[i+1:])
			size++
			chunk = s[i : i+size]
		case c == '\\' || strings.IndexByte(entityMarkers, c) >= 0:
			chunk = `\` + string(c)
		default:
			_, size = utf8.DecodeRuneInString(s[i:])
			chunk = s[i : i+size]
		}

		if b.Len()+len(chunk) > n {
			break
		}

		b.WriteString(chunk)
		i += size
	}

	return b.String()
}
