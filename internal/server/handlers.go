package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"pagesum/internal/domain"
	"pagesum/internal/overlay"
	"pagesum/internal/pipeline"
	"pagesum/internal/summarizer"
)

type summarizeRequest struct {
	SourceText     string `json:"sourceText"`
	TargetLanguage string `json:"targetLanguage"`
	APIKey         string `json:"apiKey"`
	URL            string `json:"url,omitempty"`
}

type summarizeResponse struct {
	HTML      string `json:"html"`
	Text      string `json:"text"`
	Language  string `json:"language"`
	Direction string `json:"direction"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
	HTML  string    `json:"html"`
}

const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeExtractFailed  = "EXTRACT_FAILED"
	codeInternal       = "INTERNAL"

	codeOriginNotAllowed = "ORIGIN_NOT_ALLOWED"
	codeURLNotAllowed    = "URL_NOT_ALLOWED"
)

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req summarizeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.renderError(w, r, http.StatusBadRequest, codeInvalidRequest, "request body must be JSON", nil)
		return
	}

	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" && s.fallbackAllowed(r) {
		apiKey = s.opts.FallbackAPIKey
	}

	var (
		page    *domain.Page
		summary *domain.Summary
		err     error
	)

	if req.SourceText == "" && strings.TrimSpace(req.URL) != "" {
		if checkErr := s.opts.CheckURL(ctx, req.URL); checkErr != nil {
			s.log.WarnContext(ctx, "Rejected page URL",
				"error", checkErr,
				"url", req.URL)

			s.renderError(w, r, http.StatusForbidden, codeURLNotAllowed, "page URL is not allowed", nil)
			return
		}

		page, summary, err = s.service.SummarizeURL(ctx, req.URL, req.TargetLanguage, apiKey)
	} else {
		summary, err = s.service.Summarize(ctx, domain.SummaryRequest{
			SourceText:     req.SourceText,
			TargetLanguage: req.TargetLanguage,
			APIKey:         apiKey,
		})
	}

	if err != nil {
		status, code := classifyError(err)
		if status == http.StatusInternalServerError {
			s.log.ErrorContext(ctx, "Failed to handle summarize request",
				"error", err,
				"url", req.URL,
				"language", req.TargetLanguage)
		}

		s.renderError(w, r, status, code, "", err)
		return
	}

	html := s.presenter.Summary(summary.HTML, summary.Language)

	if wantsHTML(r) {
		writeHTML(w, http.StatusOK, html)
		return
	}

	resp := summarizeResponse{
		HTML:      html,
		Text:      summary.Text,
		Language:  summary.Language,
		Direction: overlay.Direction(summary.Language),
	}
	if page != nil {
		resp.Title = page.Title
		resp.URL = page.URL
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLoading(w http.ResponseWriter, _ *http.Request) {
	writeHTML(w, http.StatusOK, s.presenter.Loading())
}

func handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// renderError answers with an overlay fragment for HTML clients and a JSON
// envelope otherwise. Either way the fragment goes through the presenter.
func (s *Server) renderError(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	code string,
	message string,
	err error,
) {
	if err == nil {
		err = errors.New(message)
	}
	if message == "" {
		message = errorMessage(err)
	}

	html := s.presenter.Error(err)

	if wantsHTML(r) {
		writeHTML(w, status, html)
		return
	}

	writeJSON(w, status, errorResponse{
		Error: errorBody{Code: code, Message: message, Status: status},
		HTML:  html,
	})
}

func classifyError(err error) (int, string) {
	var sErr *summarizer.Error
	if errors.As(err, &sErr) {
		switch sErr.Kind {
		case summarizer.KindMissingCredential:
			return http.StatusBadRequest, string(sErr.Kind)
		case summarizer.KindAuthenticationFailed:
			return http.StatusUnauthorized, string(sErr.Kind)
		default:
			return http.StatusBadGateway, string(sErr.Kind)
		}
	}

	var extractErr *pipeline.ExtractError
	if errors.As(err, &extractErr) {
		return http.StatusUnprocessableEntity, codeExtractFailed
	}

	return http.StatusInternalServerError, codeInternal
}

func errorMessage(err error) string {
	var sErr *summarizer.Error
	if errors.As(err, &sErr) {
		return sErr.Message
	}
	return err.Error()
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeHTML(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, html)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
