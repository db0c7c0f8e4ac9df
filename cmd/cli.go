package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"pagesum/internal/bot"
	"pagesum/internal/config"
	"pagesum/internal/database"
	"pagesum/internal/domain"
	"pagesum/internal/markdown"
	"pagesum/internal/overlay"
	"pagesum/internal/page"
	"pagesum/internal/pipeline"
	"pagesum/internal/scheduler"
	"pagesum/internal/server"
	"pagesum/internal/summarizer"

	"github.com/urfave/cli/v2"
)

const (
	formatHTML     = "html"
	formatText     = "text"
	formatTelegram = "telegram"
	formatOverlay  = "overlay"
)

var errBotTokenMissing = errors.New("TELEGRAM_TOKEN is required")

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg config.Config, log *slog.Logger) *cli.App {
	app := &cli.App{
		Name:  "pagesum",
		Usage: "Summarize web pages with an LLM",
		Commands: []*cli.Command{
			summarizeCmd(cfg, log),
			serveCmd(cfg, log),
			botCmd(cfg, log),
		},
	}
	// Errors are returned to main instead of exiting inside the app.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newService wires the summarizer and a page extractor that fetches with
// client.
func newService(cfg config.Config, client *http.Client, log *slog.Logger) *pipeline.Service {
	var s summarizer.Summarizer

	switch cfg.Provider {
	case config.ProviderOpenAI:
		s = summarizer.NewOpenAISummarizer(summarizer.OpenAIConfig{
			Model:   cfg.OpenAIModel,
			Timeout: cfg.RequestTimeout,
		})
	default:
		s = summarizer.NewGeminiSummarizer(summarizer.GeminiConfig{
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.RequestTimeout,
		}, log)
	}

	log.Debug("Summarizer is initialized",
		"provider", cfg.Provider,
		"timeout", cfg.RequestTimeout.String())

	extractor := page.NewExtractor(client, log)

	return pipeline.New(s, extractor, cfg.DefaultLanguage, log)
}

// summarizeCmd creates the summarize command.
func summarizeCmd(cfg config.Config, log *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "summarize",
		Usage: "Summarize a page URL, a file or stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Page URL to fetch and summarize"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Text file to summarize (- for stdin)"},
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Summary language (defaults to DEFAULT_LANGUAGE)"},
			&cli.StringFlag{Name: "api-key", Usage: "Provider API key (defaults to the configured key)"},
			&cli.StringFlag{
				Name:    "format",
				Value:   formatText,
				Usage:   "Output format: html|text|telegram|overlay",
				EnvVars: []string{"PAGESUM_FORMAT"},
			},
		},
		Action: func(c *cli.Context) error {
			format := strings.ToLower(strings.TrimSpace(c.String("format")))
			switch format {
			case formatHTML, formatText, formatTelegram, formatOverlay:
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			apiKey := c.String("api-key")
			if strings.TrimSpace(apiKey) == "" {
				apiKey = cfg.APIKey()
			}

			service := newService(cfg, &http.Client{Timeout: cfg.RequestTimeout}, log)
			presenter := overlay.New(cfg.OptionsURL)

			var summary *domain.Summary
			var err error

			if rawURL := strings.TrimSpace(c.String("url")); rawURL != "" {
				_, summary, err = service.SummarizeURL(c.Context, rawURL, c.String("lang"), apiKey)
			} else {
				var text string
				text, err = readSource(c.String("file"), c.App.Reader)
				if err != nil {
					return err
				}

				summary, err = service.Summarize(c.Context, domain.SummaryRequest{
					SourceText:     text,
					TargetLanguage: c.String("lang"),
					APIKey:         apiKey,
				})
			}

			if err != nil {
				if format == formatOverlay {
					_, _ = fmt.Fprintln(c.App.Writer, presenter.Error(err))
				}
				return fmt.Errorf("summarize: %w", err)
			}

			var out string
			switch format {
			case formatHTML:
				out = summary.HTML
			case formatTelegram:
				out = markdown.TelegramV2(summary.Text)
			case formatOverlay:
				out = presenter.Summary(summary.HTML, summary.Language)
			default:
				out = summary.Text
			}

			_, err = fmt.Fprintln(c.App.Writer, out)
			return err
		},
	}
}

// readSource reads the text to summarize from path, or from stdin when path
// is empty or "-".
func readSource(path string, stdin io.Reader) (string, error) {
	path = strings.TrimSpace(path)

	if path == "" || path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}

		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	return string(data), nil
}

// serveCmd creates the serve command.
func serveCmd(cfg config.Config, log *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the summarize API for the browser extension",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: cfg.HTTPAddr, Usage: "Listen address"},
		},
		Action: func(c *cli.Context) error {
			srv := server.New(
				server.Options{
					Addr:           c.String("addr"),
					FallbackAPIKey: cfg.APIKey(),
					AccessToken:    cfg.APIToken,
					AllowedOrigins: cfg.AllowedOrigins,
				},
				newService(cfg, page.NewPublicClient(cfg.RequestTimeout), log),
				overlay.New(cfg.OptionsURL),
				log,
			)

			return srv.Run(c.Context)
		},
	}
}

// botCmd creates the bot command.
func botCmd(cfg config.Config, log *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "Run the Telegram bot and the hourly watch digest",
		Action: func(c *cli.Context) error {
			ctx := c.Context

			if strings.TrimSpace(cfg.TelegramToken) == "" {
				return errBotTokenMissing
			}

			db, err := database.New(ctx, cfg.DBPath, log)
			if err != nil {
				return fmt.Errorf("initialize db: %w", err)
			}
			defer func() {
				if err = db.Close(); err != nil {
					log.ErrorContext(ctx, "Failed to close db",
						"error", err,
						"dbPath", cfg.DBPath)
				}
			}()
			log.InfoContext(ctx, "DB is initialized",
				"dbPath", cfg.DBPath)

			botInst, err := bot.New(
				cfg.TelegramToken,
				db,
				newService(cfg, page.NewPublicClient(cfg.RequestTimeout), log),
				cfg.APIKey(),
				cfg.AllowedUsers,
				log,
			)
			if err != nil {
				return fmt.Errorf("initialize bot: %w", err)
			}
			defer botInst.Stop()
			log.InfoContext(ctx, "Bot is initialized",
				"allowedUsersCount", len(cfg.AllowedUsers))

			sched := scheduler.New(ctx, db, botInst, log)

			timezone := time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String()
			if err = sched.Start(); err != nil {
				return fmt.Errorf("start scheduler (spec = %s, timezone = %s): %w",
					scheduler.HourlyDigestSpec, timezone, err)
			}
			defer sched.Stop()
			log.InfoContext(ctx, "Scheduler is started",
				"spec", scheduler.HourlyDigestSpec,
				"timezone", timezone)

			botInst.Start(ctx)

			return nil
		},
	}
}
