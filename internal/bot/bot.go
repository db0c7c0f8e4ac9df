package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"pagesum/internal/database"
	"pagesum/internal/domain"
	"pagesum/internal/ratelimiter"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const updateProcessingTimeout = 5 * time.Minute

// PageSummarizer runs one extract and summarize cycle for a URL.
type PageSummarizer interface {
	SummarizeURL(
		ctx context.Context,
		rawURL string,
		language string,
		apiKey string,
	) (*domain.Page, *domain.Summary, error)
}

// Messenger delivers MarkdownV2 messages and chat actions to a chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

type Bot struct {
	api          *tgbot.Bot
	messenger    Messenger
	limiter      *ratelimiter.RateLimiter
	db           *database.Database
	summarizer   PageSummarizer
	apiKey       string
	allowedUsers []int64
	log          *slog.Logger
}

func New(
	token string,
	db *database.Database,
	summarizer PageSummarizer,
	apiKey string,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := &Bot{
		db:           db,
		summarizer:   summarizer,
		apiKey:       apiKey,
		allowedUsers: allowedUsers,
		log:          log,
	}

	api, err := tgbot.New(strings.TrimSpace(token), tgbot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	b.api = api
	b.limiter = ratelimiter.New(&telegramMessenger{api: api}, log)
	b.messenger = b.limiter

	return b, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is started")

	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.limiter != nil {
		b.limiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	message := update.Message
	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.userAllowed(userID) {
		b.log.DebugContext(updateCtx, "User is not allowed",
			"userID", userID,
			"chatID", chatID,
			"username", message.From.Username)

		return
	}

	if err := b.handleMessage(updateCtx, chatID, userID, message.Text); err != nil {
		b.log.ErrorContext(updateCtx, "Failed to handle message",
			"error", err,
			"chatID", chatID,
			"userID", userID,
			"messageID", message.ID)
	}
}

// userAllowed reports whether userID may use the bot. An empty list allows
// everyone.
func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

type telegramMessenger struct {
	api *tgbot.Bot
}

func (m *telegramMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	disabled := true

	_, err := m.api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disabled,
		},
	})

	return err
}

func (m *telegramMessenger) SendTyping(ctx context.Context, chatID int64) error {
	_, err := m.api.SendChatAction(ctx, &tgbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})

	return err
}
