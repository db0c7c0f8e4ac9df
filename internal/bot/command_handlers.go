package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pagesum/internal/domain"
	"pagesum/internal/markdown"
	"pagesum/internal/page"
)

const hoursPerDay = 24

const welcomeText = `🤖 *Welcome to Pagesum\!*

Send me any link and I will reply with a short summary of the page\.

– Choose summary language with /language \<name\>
– Watch a page with /watch \<url\>
– Get watched page list with /list
– Stop watching with /unwatch \<id\>
– Set daily digest hour \(UTC\) with /digest \<hour\>
– Get digest right now with /digest`

const (
	failedText  = "❌ Failed\\."
	successText = "✅ Success\\."
	noURLsText  = "✖️ Links are not found in the message\\."
	emptyText   = "✖️ Watch list is empty\\."
)

func (b *Bot) handleLanguageCommand(ctx context.Context, args string, chatID int64, userID int64) error {
	settings, err := b.db.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("get user settings with default: %w", err))
	}

	language := strings.TrimSpace(args)
	if language == "" {
		return b.sendMessage(ctx, chatID, fmt.Sprintf(
			"🌐 Current summary language is *%s*\\.",
			markdown.EscapeV2(settings.Language)))
	}

	settings.Language = language
	if err = b.db.UpsertUserSettings(ctx, settings); err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("upsert user settings: %w", err))
	}

	return b.sendMessage(ctx, chatID, fmt.Sprintf(
		"✅ Summary language is *%s*\\.",
		markdown.EscapeV2(language)))
}

func (b *Bot) handleWatchCommand(ctx context.Context, args string, chatID int64, userID int64) error {
	urls, err := page.FindURLs(args)
	if err != nil || len(urls) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("find URLs: %w", err))
		}

		if sendErr := b.sendMessage(ctx, chatID, noURLsText); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	var errs []error

	added := 0
	for _, rawURL := range urls {
		if err = b.db.AddWatchedPage(ctx, userID, rawURL, ""); err != nil {
			errs = append(errs, fmt.Errorf("add watched page: %w", err))
		} else {
			added++
		}
	}

	switch {
	case added == 0:
		if err = b.sendMessage(ctx, chatID, failedText); err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	case len(errs) > 0:
		if err = b.sendMessage(ctx, chatID, fmt.Sprintf("⚠️ Partial success \\(%d added\\)\\.", added)); err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	default:
		if err = b.sendMessage(ctx, chatID, successText); err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) handleUnwatchCommand(ctx context.Context, args string, chatID int64, userID int64) error {
	pageID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("parse pageID: %w", err))
	}

	removed, err := b.db.RemoveWatchedPage(ctx, userID, pageID)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("remove watched page: %w", err))
	}

	if !removed {
		return b.sendMessage(ctx, chatID, "✖️ Page is not found in your watch list\\.")
	}

	return b.sendMessage(ctx, chatID, "✅ Page is removed\\.")
}

func (b *Bot) handleListCommand(ctx context.Context, chatID int64, userID int64) error {
	pages, err := b.db.GetUserWatchedPages(ctx, userID)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("get user watched pages: %w", err))
	}

	if len(pages) == 0 {
		return b.sendMessage(ctx, chatID, emptyText)
	}

	return b.sendMessage(ctx, chatID, formatWatchList(pages))
}

func formatWatchList(pages []domain.WatchedPage) string {
	var message strings.Builder
	message.WriteString(fmt.Sprintf("🔍 *Watching %d pages:*\n\n", len(pages)))

	for _, p := range pages {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			title = p.URL
		}

		message.WriteString(fmt.Sprintf("%d\\. [%s](%s)\n",
			p.ID,
			markdown.EscapeV2(title),
			escapeLinkURL(p.URL)))
	}

	return message.String()
}

// handleDigestCommand sets the digest hour when args is given, otherwise
// sends the digest right away.
func (b *Bot) handleDigestCommand(ctx context.Context, args string, chatID int64, userID int64) error {
	if args == "" {
		pages, err := b.db.GetUserWatchedPages(ctx, userID)
		if err != nil {
			return b.fail(ctx, chatID, fmt.Errorf("get user watched pages: %w", err))
		}

		if len(pages) == 0 {
			return b.sendMessage(ctx, chatID, emptyText)
		}

		return b.SendDigest(ctx, userID, pages)
	}

	hour, err := parseHour(args)
	if err != nil {
		return errors.Join(err, b.sendMessage(ctx, chatID, "✖️ Hour must be a number from 0 to 23\\."))
	}

	settings, err := b.db.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("get user settings with default: %w", err))
	}

	settings.DigestHourUTC = hour
	if err = b.db.UpsertUserSettings(ctx, settings); err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("upsert user settings: %w", err))
	}

	return b.sendMessage(ctx, chatID, fmt.Sprintf("✅ Daily digest is sent at %02d:00 UTC\\.", hour))
}

func parseHour(s string) (int64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ":00")

	hour, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hour: %w", err)
	}

	if hour < 0 || hour >= hoursPerDay {
		return 0, fmt.Errorf("hour %d is out of range", hour)
	}

	return hour, nil
}

// fail reports a failed command to the user and returns err joined with any
// send error.
func (b *Bot) fail(ctx context.Context, chatID int64, err error) error {
	errs := []error{err}

	if sendErr := b.sendMessage(ctx, chatID, failedText); sendErr != nil {
		errs = append(errs, fmt.Errorf("send message: %w", sendErr))
	}

	return errors.Join(errs...)
}
