package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pagesum/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	defaultFetchTimeout = 20 * time.Second
	maxPageBytes        = 5 << 20
)

// hiddenSelector matches elements whose text is never rendered.
const hiddenSelector = "head, script, style, noscript, template, svg, iframe, object"

const blockSelector = "p, div, section, article, header, footer, main, aside, nav, " +
	"li, dt, dd, tr, h1, h2, h3, h4, h5, h6, blockquote, pre, figcaption, table"

type Extractor struct {
	client       *http.Client
	feeds        *gofeed.Parser
	telegramBase string
	log          *slog.Logger
}

func NewExtractor(client *http.Client, log *slog.Logger) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	return &Extractor{
		client:       client,
		feeds:        gofeed.NewParser(),
		telegramBase: defaultTelegramBase,
		log:          log,
	}
}

// Extract downloads rawURL and returns its visible text. Feeds yield the
// text of their newest item; public Telegram channels and posts are read
// from their web preview.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (domain.Page, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return domain.Page{}, errors.New("page URL is empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.Page{}, fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Page{}, fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}

	fetchURL := u.String()

	target, isTelegram := parseTelegramURL(u)
	if isTelegram {
		fetchURL = target.previewURL(e.telegramBase)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req) //nolint:gosec // User-supplied page URL.
	if err != nil {
		return domain.Page{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			e.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL,
				"operation", "Extract")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return domain.Page{}, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return domain.Page{}, fmt.Errorf("read body: %w", err)
	}

	if isTelegram {
		title, text, tgErr := parseTelegram(bytes.NewReader(body), target)
		if tgErr != nil {
			return domain.Page{}, fmt.Errorf("parse Telegram page: %w", tgErr)
		}
		if title == "" {
			title = rawURL
		}

		return domain.Page{URL: rawURL, Title: title, Text: text}, nil
	}

	contentType := resp.Header.Get("Content-Type")
	if looksLikeFeed(contentType, body) {
		p, feedErr := e.parseFeed(body)
		if feedErr == nil {
			p.URL = rawURL
			return p, nil
		}

		e.log.WarnContext(ctx, "Failed to parse feed, reading as HTML",
			"error", feedErr,
			"url", rawURL,
			"contentType", contentType)
	}

	title, text, err := ParseHTML(bytes.NewReader(body))
	if err != nil {
		return domain.Page{}, fmt.Errorf("parse HTML: %w", err)
	}

	if title == "" {
		e.log.WarnContext(ctx, "Empty page title",
			"url", rawURL,
			"fallbackTitle", rawURL)

		title = rawURL
	}

	return domain.Page{URL: rawURL, Title: title, Text: text}, nil
}

func (e *Extractor) parseFeed(body []byte) (domain.Page, error) {
	parsed, err := e.feeds.Parse(bytes.NewReader(body))
	if err != nil {
		return domain.Page{}, err
	}

	if len(parsed.Items) == 0 {
		return domain.Page{}, errors.New("feed has no items")
	}

	item := parsed.Items[0]

	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Description
	}

	_, text, err := ParseHTML(strings.NewReader(content))
	if err != nil {
		return domain.Page{}, fmt.Errorf("parse item content: %w", err)
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = strings.TrimSpace(parsed.Title)
	}

	if title != "" {
		text = strings.TrimSpace(title + "\n" + text)
	}

	return domain.Page{Title: title, Text: text}, nil
}

// ParseHTML returns the document title and the text a browser would render
// for the body, one block per line.
func ParseHTML(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("create document from reader: %w", err)
	}

	title := ""
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		title = strings.TrimSpace(content)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find(hiddenSelector).Remove()
	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	doc.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		block.AppendHtml("\n")
	})

	return title, normalizeText(doc.Find("body").Text()), nil
}

func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			continue
		}
		kept = append(kept, l)
	}

	return strings.Join(kept, "\n")
}

// looksLikeFeed reports whether body should be tried as a feed: either the
// server says so or the body sniffs as RSS, Atom or JSON Feed.
func looksLikeFeed(contentType string, body []byte) bool {
	return isFeedContentType(contentType) ||
		gofeed.DetectFeedType(bytes.NewReader(body)) != gofeed.FeedTypeUnknown
}

func isFeedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	switch mediaType {
	case "application/rss+xml", "application/atom+xml", "application/feed+json",
		"application/xml", "text/xml":
		return true
	default:
		return false
	}
}
