package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"pagesum/internal/domain"
	"pagesum/internal/overlay"
	"pagesum/internal/page"
)

const (
	maxRequestBodyBytes = 10 << 20
	readHeaderTimeout   = 10 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// SummaryService runs summarize cycles for the API.
type SummaryService interface {
	Summarize(ctx context.Context, req domain.SummaryRequest) (*domain.Summary, error)
	SummarizeURL(ctx context.Context, rawURL, language, apiKey string) (*domain.Page, *domain.Summary, error)
}

// Options configures the API server.
type Options struct {
	Addr string
	// FallbackAPIKey is used for requests without a key of their own. Only
	// requests with the access token, or same-machine requests without an
	// Origin header when no token is set, may use it.
	FallbackAPIKey string
	AccessToken    string
	// AllowedOrigins lists browser origins allowed to call the API. "*"
	// allows any origin. Extension origins are allowed when the list is empty.
	AllowedOrigins []string
	// CheckURL vets URLs before they are fetched. It defaults to
	// page.CheckPublicURL.
	CheckURL func(ctx context.Context, rawURL string) error
}

// Server exposes the summarize cycle over HTTP for the browser extension.
type Server struct {
	srv       *http.Server
	service   SummaryService
	presenter *overlay.Presenter
	opts      Options
	log       *slog.Logger
}

func New(
	opts Options,
	service SummaryService,
	presenter *overlay.Presenter,
	log *slog.Logger,
) *Server {
	if opts.CheckURL == nil {
		opts.CheckURL = page.CheckPublicURL
	}

	s := &Server{
		service:   service,
		presenter: presenter,
		opts:      opts,
		log:       log,
	}

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/summarize", s.handleSummarize)
	mux.HandleFunc("OPTIONS /api/summarize", handlePreflight)
	mux.HandleFunc("GET /api/loading", s.handleLoading)
	mux.HandleFunc("GET /healthz", handleHealth)

	return securityHeaders(s.cors(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	s.log.InfoContext(ctx, "HTTP server is started",
		"addr", ln.Addr().String())

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.log.InfoContext(ctx, "HTTP server is stopped",
		"addr", ln.Addr().String())

	return nil
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// cors answers cross-origin requests from allowed origins only. Requests
// without an Origin header are not made by a browser page and pass through.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Origin")

		if !s.originAllowed(origin) {
			s.log.WarnContext(r.Context(), "Rejected request from origin",
				"origin", origin,
				"path", r.URL.Path)

			writeJSON(w, http.StatusForbidden, errorResponse{
				Error: errorBody{
					Code:    codeOriginNotAllowed,
					Message: "origin is not allowed",
					Status:  http.StatusForbidden,
				},
			})
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return strings.HasPrefix(origin, "chrome-extension://") ||
			strings.HasPrefix(origin, "moz-extension://")
	}

	for _, allowed := range s.opts.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	return false
}

// fallbackAllowed reports whether r may spend the server-side API key.
func (s *Server) fallbackAllowed(r *http.Request) bool {
	if s.opts.AccessToken == "" {
		return r.Header.Get("Origin") == ""
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.opts.AccessToken)) == 1
}
