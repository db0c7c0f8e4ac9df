package page

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func telegramMessage(post string, text string) string {
	return fmt.Sprintf(`<div class="tgme_widget_message" data-post="%s">
<div class="tgme_widget_message_text">%s</div>
</div>`, post, text)
}

func channelHTML(posts int) string {
	var b strings.Builder
	b.WriteString(`<html><head><meta property="og:title" content="Example Channel"></head><body>`)
	b.WriteString(`<div class="tgme_channel_info_header_title"><span>Ignored</span></div>`)

	for i := 1; i <= posts; i++ {
		b.WriteString(telegramMessage(fmt.Sprintf("example_channel/%d", i), fmt.Sprintf("Post %d<br>line two", i)))
	}

	b.WriteString(`</body></html>`)
	return b.String()
}

func TestParseTelegramURL(t *testing.T) {
	tests := []struct {
		raw    string
		ok     bool
		slug   string
		postID string
	}{
		{"https://t.me/example_channel", true, "example_channel", ""},
		{"https://t.me/s/example_channel", true, "example_channel", ""},
		{"https://telegram.me/example_channel/42?single", true, "example_channel", "42"},
		{"https://t.me/joinchat/abcdefgh", false, "", ""},
		{"https://t.me/abc", false, "", ""},
		{"https://t.me/example_channel/notanumber", false, "", ""},
		{"https://example.com/example_channel", false, "", ""},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)

		target, ok := parseTelegramURL(u)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.slug, target.slug, tt.raw)
		assert.Equal(t, tt.postID, target.postID, tt.raw)
	}
}

func TestTelegramPreviewURL(t *testing.T) {
	assert.Equal(t, "https://t.me/s/example_channel",
		telegramTarget{slug: "example_channel"}.previewURL(defaultTelegramBase))
	assert.Equal(t, "https://t.me/example_channel/7?embed=1&mode=tme",
		telegramTarget{slug: "example_channel", postID: "7"}.previewURL(defaultTelegramBase))
}

func TestParseTelegramChannelKeepsLatestPosts(t *testing.T) {
	title, text, err := parseTelegram(strings.NewReader(channelHTML(12)), telegramTarget{slug: "example_channel"})
	require.NoError(t, err)

	assert.Equal(t, "Example Channel", title)
	assert.NotContains(t, text, "Post 2\n")
	assert.True(t, strings.HasPrefix(text, "Post 3\nline two"), text)
	assert.True(t, strings.HasSuffix(text, "Post 12\nline two"), text)
}

func TestParseTelegramSinglePost(t *testing.T) {
	_, text, err := parseTelegram(
		strings.NewReader(channelHTML(3)),
		telegramTarget{slug: "example_channel", postID: "2"},
	)
	require.NoError(t, err)
	assert.Equal(t, "Post 2\nline two", text)
}

func TestParseTelegramNoPosts(t *testing.T) {
	_, _, err := parseTelegram(strings.NewReader(`<html><body></body></html>`), telegramTarget{slug: "example_channel"})
	require.Error(t, err)
}

func TestExtractTelegramChannel(t *testing.T) {
	var requested []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.RequestURI())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, channelHTML(2))
	}))
	t.Cleanup(srv.Close)

	e := NewExtractor(srv.Client(), slog.Default())
	e.telegramBase = srv.URL

	p, err := e.Extract(context.Background(), "https://t.me/example_channel")
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/example_channel", p.URL)
	assert.Equal(t, "Example Channel", p.Title)
	assert.Equal(t, "Post 1\nline two\n\nPost 2\nline two", p.Text)

	_, err = e.Extract(context.Background(), "https://t.me/example_channel/2")
	require.NoError(t, err)

	assert.Equal(t, []string{"/s/example_channel", "/example_channel/2?embed=1&mode=tme"}, requested)
}
