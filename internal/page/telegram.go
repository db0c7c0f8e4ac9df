package page

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTelegramBase = "https://t.me"
	maxChannelPosts     = 10
)

var telegramSlugRe = regexp.MustCompile(`^\w{5,32}$`)

//nolint:gochecknoglobals // Read-only set.
var telegramReservedPaths = map[string]struct{}{
	"joinchat":    {},
	"addstickers": {},
	"addemoji":    {},
	"share":       {},
	"proxy":       {},
	"socks":       {},
}

// telegramTarget is a public Telegram channel or a single channel post.
type telegramTarget struct {
	slug   string
	postID string
}

// parseTelegramURL recognizes t.me/<slug>, t.me/s/<slug> and
// t.me/<slug>/<post> links.
func parseTelegramURL(u *url.URL) (telegramTarget, bool) {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "t.me" && host != "telegram.me" {
		return telegramTarget{}, false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && parts[0] == "s" {
		parts = parts[1:]
	}

	if len(parts) == 0 || len(parts) > 2 {
		return telegramTarget{}, false
	}

	slug := parts[0]
	if _, reserved := telegramReservedPaths[strings.ToLower(slug)]; reserved || !telegramSlugRe.MatchString(slug) {
		return telegramTarget{}, false
	}

	target := telegramTarget{slug: slug}

	if len(parts) == 2 {
		if !isDigits(parts[1]) {
			return telegramTarget{}, false
		}
		target.postID = parts[1]
	}

	return target, true
}

// previewURL is the server-rendered page holding the post text: the embed
// widget for a single post, the web preview for a channel.
func (t telegramTarget) previewURL(base string) string {
	if t.postID != "" {
		return fmt.Sprintf("%s/%s/%s?embed=1&mode=tme", base, t.slug, t.postID)
	}

	return fmt.Sprintf("%s/s/%s", base, t.slug)
}

// parseTelegram returns the channel title and the text of the targeted post,
// or of the latest channel posts, oldest first.
func parseTelegram(r io.Reader, target telegramTarget) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("create document from reader: %w", err)
	}

	var title string
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		title = strings.TrimSpace(content)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").First().Text())
	}

	messages := doc.Find(".tgme_widget_message")
	if target.postID != "" {
		want := target.slug + "/" + target.postID
		messages = messages.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.EqualFold(s.AttrOr("data-post", ""), want)
		})
	}

	var posts []string
	messages.Each(func(_ int, message *goquery.Selection) {
		if text := messageText(message); text != "" {
			posts = append(posts, text)
		}
	})

	if len(posts) == 0 {
		return "", "", errors.New("no post text found")
	}

	if len(posts) > maxChannelPosts {
		posts = posts[len(posts)-maxChannelPosts:]
	}

	return title, strings.Join(posts, "\n\n"), nil
}

func messageText(message *goquery.Selection) string {
	var b strings.Builder

	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})

			fragment := normalizeText(inner.Text())
			if fragment == "" {
				return
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fragment)
		},
	)

	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
