package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"pagesum/internal/domain"
	"pagesum/internal/overlay"
	"pagesum/internal/page"
	"pagesum/internal/pipeline"
	"pagesum/internal/summarizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geminiStub answers Gemini requests in-process and counts them.
type geminiStub struct {
	calls   atomic.Int32
	lastKey atomic.Value
	status  int
	body    string
}

func (g *geminiStub) RoundTrip(req *http.Request) (*http.Response, error) {
	g.calls.Add(1)
	g.lastKey.Store(req.URL.Query().Get("key"))

	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(g.status)
	_, _ = io.WriteString(rec, g.body)

	return rec.Result(), nil
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string) (domain.Page, error) {
	return domain.Page{}, errors.New("unexpected status: 404")
}

func setupServer(t *testing.T, stub *geminiStub, fallbackKey string) http.Handler {
	t.Helper()

	return setupServerWith(t, stub, Options{
		FallbackAPIKey: fallbackKey,
		CheckURL:       func(context.Context, string) error { return nil },
	}, failingExtractor{})
}

func setupServerWith(t *testing.T, stub *geminiStub, opts Options, extractor pipeline.PageExtractor) http.Handler {
	t.Helper()

	gemini := summarizer.NewGeminiSummarizer(summarizer.GeminiConfig{
		HTTPClient: &http.Client{Transport: stub},
	}, slog.Default())
	svc := pipeline.New(gemini, extractor, "English", slog.Default())

	return New(opts, svc, overlay.New("https://example.com/options"), slog.Default()).Handler()
}

func okStub() *geminiStub {
	return &geminiStub{
		status: http.StatusOK,
		body:   `{"candidates":[{"content":{"parts":[{"text":"# Title\n* one\n> detail"}]}}]}`,
	}
}

func post(t *testing.T, h http.Handler, body string, accept string) *httptest.ResponseRecorder {
	t.Helper()

	return postWithHeaders(t, h, body, map[string]string{"Accept": accept})
}

func postWithHeaders(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/summarize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestSummarizeJSON(t *testing.T) {
	stub := okStub()
	h := setupServer(t, stub, "")

	rec := post(t, h, `{"sourceText":"page","targetLanguage":"Hebrew","apiKey":"user-key"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp summarizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "Hebrew", resp.Language)
	assert.Equal(t, "rtl", resp.Direction)
	assert.Equal(t, "# Title\n* one\n> detail", resp.Text)
	assert.Contains(t, resp.HTML, "<h1>Title</h1>")
	assert.Contains(t, resp.HTML, `id="`+overlay.ContainerID+`"`)
	assert.Equal(t, "user-key", stub.lastKey.Load())
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSummarizeHTMLFragment(t *testing.T) {
	h := setupServer(t, okStub(), "")

	rec := post(t, h, `{"sourceText":"page","apiKey":"k"}`, "text/html")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<p class="expanded-summary">detail</p>`)
}

func TestSummarizeFallbackKey(t *testing.T) {
	stub := okStub()
	h := setupServer(t, stub, "server-key")

	rec := post(t, h, `{"sourceText":"page"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "server-key", stub.lastKey.Load())
}

func TestSummarizeMissingCredential(t *testing.T) {
	stub := okStub()
	h := setupServer(t, stub, "")

	rec := post(t, h, `{"sourceText":"page"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, string(summarizer.KindMissingCredential), resp.Error.Code)
	assert.Contains(t, resp.HTML, "API Key is missing.")
	assert.Equal(t, int32(0), stub.calls.Load())
}

func TestSummarizeAuthenticationFailed(t *testing.T) {
	stub := &geminiStub{status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`}
	h := setupServer(t, stub, "")

	rec := post(t, h, `{"sourceText":"page","apiKey":"k"}`, "text/html")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error: bad key")
}

func TestSummarizeRemoteRejected(t *testing.T) {
	stub := &geminiStub{status: http.StatusTooManyRequests, body: `{"error":{"message":"quota exceeded"}}`}
	h := setupServer(t, stub, "")

	rec := post(t, h, `{"sourceText":"page","apiKey":"k"}`, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(summarizer.KindRemoteRejected), resp.Error.Code)
	assert.Equal(t, "quota exceeded", resp.Error.Message)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestSummarizeInvalidJSON(t *testing.T) {
	h := setupServer(t, okStub(), "")

	rec := post(t, h, `not json`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, codeInvalidRequest, resp.Error.Code)
}

func TestSummarizeURLExtractFailure(t *testing.T) {
	stub := okStub()
	h := setupServer(t, stub, "")

	rec := post(t, h, `{"url":"https://example.com/missing","apiKey":"k"}`, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, int32(0), stub.calls.Load())
}

func TestPreflightAndHealth(t *testing.T) {
	h := setupServer(t, okStub(), "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/summarize", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loading", nil))
	assert.Contains(t, rec.Body.String(), "Please wait...")
}

func TestCORSAllowedOrigins(t *testing.T) {
	stub := okStub()
	h := setupServerWith(t, stub, Options{AllowedOrigins: []string{"https://reader.example"}}, failingExtractor{})

	rec := postWithHeaders(t, h, `{"sourceText":"page","apiKey":"k"}`, map[string]string{
		"Origin": "https://evil.example",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, int32(0), stub.calls.Load())

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, codeOriginNotAllowed, resp.Error.Code)

	rec = postWithHeaders(t, h, `{"sourceText":"page","apiKey":"k"}`, map[string]string{
		"Origin": "https://reader.example",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://reader.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestCORSDefaultsToExtensionOrigins(t *testing.T) {
	h := setupServerWith(t, okStub(), Options{}, failingExtractor{})

	req := httptest.NewRequest(http.MethodOptions, "/api/summarize", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "chrome-extension://abcdef", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodOptions, "/api/summarize", nil)
	req.Header.Set("Origin", "https://any-site.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFallbackKeyNotUsedCrossOrigin(t *testing.T) {
	stub := okStub()
	h := setupServerWith(t, stub, Options{FallbackAPIKey: "server-key"}, failingExtractor{})

	rec := postWithHeaders(t, h, `{"sourceText":"page"}`, map[string]string{
		"Origin": "chrome-extension://abcdef",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(summarizer.KindMissingCredential), resp.Error.Code)
	assert.Equal(t, int32(0), stub.calls.Load())
}

func TestFallbackKeyRequiresAccessToken(t *testing.T) {
	stub := okStub()
	h := setupServerWith(t, stub, Options{
		FallbackAPIKey: "server-key",
		AccessToken:    "secret",
	}, failingExtractor{})

	for _, auth := range []string{"", "Bearer wrong", "secret"} {
		rec := postWithHeaders(t, h, `{"sourceText":"page"}`, map[string]string{"Authorization": auth})
		assert.Equal(t, http.StatusBadRequest, rec.Code, auth)
	}
	assert.Equal(t, int32(0), stub.calls.Load())

	rec := postWithHeaders(t, h, `{"sourceText":"page"}`, map[string]string{
		"Authorization": "Bearer secret",
		"Origin":        "chrome-extension://abcdef",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "server-key", stub.lastKey.Load())
}

func TestSummarizeURLRejectsPrivateAddress(t *testing.T) {
	var hits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "<html><body>internal</body></html>")
	}))
	t.Cleanup(target.Close)

	stub := okStub()
	extractor := page.NewExtractor(target.Client(), slog.Default())
	h := setupServerWith(t, stub, Options{}, extractor)

	for _, rawURL := range []string{target.URL + "/admin", "http://169.254.169.254/latest/meta-data/"} {
		rec := post(t, h, `{"url":"`+rawURL+`","apiKey":"k"}`, "")
		require.Equal(t, http.StatusForbidden, rec.Code, rawURL)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, codeURLNotAllowed, resp.Error.Code)
	}

	assert.Equal(t, int32(0), hits.Load())
	assert.Equal(t, int32(0), stub.calls.Load())
}
