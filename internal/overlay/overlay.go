package overlay

import (
	"bytes"
	"errors"
	"html/template"
	"strings"

	"pagesum/internal/summarizer"
)

// ContainerID identifies the single active overlay. Clients replace any
// element with this id instead of stacking overlays.
const ContainerID = "ai-summary-container"

const overlayTemplate = `<div id="{{.ID}}" class="ai-summary-overlay" role="dialog" aria-modal="true">
<div class="ai-summary-container" dir="{{.Direction}}">
<button type="button" class="ai-summary-close" aria-label="Close">&times;</button>
<div class="ai-summary-content">{{.Body}}</div>
</div>
</div>`

const (
	loadingBody           = `<p class="ai-summary-loading">Please wait...</p>`
	missingCredentialBody = `<div class="error-message"><p>API Key is missing.</p>` +
		`<p><a href="{{.}}" target="_blank" rel="noopener">Please set your API key in the options page.</a></p></div>`
	invalidCredentialBody = `<div class="error-message"><p>Error: {{.Message}}</p>` +
		`{{if .OptionsURL}}<p><a href="{{.OptionsURL}}" target="_blank" rel="noopener">Check your API key in the options page.</a></p>{{end}}</div>`
	errorBody = `<p class="error-message">Error: {{.}}</p>`
)

//nolint:gochecknoglobals // Parsed once, read-only afterwards.
var (
	overlayTmpl           = template.Must(template.New("overlay").Parse(overlayTemplate))
	missingCredentialTmpl = template.Must(template.New("missingCredential").Parse(missingCredentialBody))
	invalidCredentialTmpl = template.Must(template.New("invalidCredential").Parse(invalidCredentialBody))
	errorTmpl             = template.Must(template.New("error").Parse(errorBody))
)

type overlayData struct {
	ID        string
	Direction string
	Body      template.HTML
}

// Presenter builds overlay fragments for summaries, errors and the loading
// state.
type Presenter struct {
	optionsURL template.URL
}

// New builds a presenter linking credential errors to optionsURL. The URL is
// operator configuration and may use an extension scheme, so it is not
// filtered.
func New(optionsURL string) *Presenter {
	//nolint:gosec // Operator-supplied URL.
	return &Presenter{optionsURL: template.URL(strings.TrimSpace(optionsURL))}
}

// Direction returns the text direction for a human-readable language name.
func Direction(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "hebrew", "arabic":
		return "rtl"
	default:
		return "ltr"
	}
}

// Summary wraps renderedHTML in the overlay. renderedHTML comes from the
// model and is inserted without sanitization.
func (p *Presenter) Summary(renderedHTML, language string) string {
	//nolint:gosec // Model output is trusted by contract.
	return render(template.HTML(renderedHTML), Direction(language))
}

func (p *Presenter) Loading() string {
	return render(loadingBody, "ltr")
}

// Error renders err in the overlay. Credential problems link to the options
// page when one is configured.
func (p *Presenter) Error(err error) string {
	var sErr *summarizer.Error
	isTyped := errors.As(err, &sErr)

	switch {
	case isTyped && sErr.Kind == summarizer.KindMissingCredential && p.optionsURL != "":
		return render(execute(missingCredentialTmpl, p.optionsURL), "ltr")
	case summarizer.IsCredentialProblem(err):
		return render(execute(invalidCredentialTmpl, struct {
			Message    string
			OptionsURL template.URL
		}{Message: errorMessage(err), OptionsURL: p.optionsURL}), "ltr")
	default:
		return render(execute(errorTmpl, errorMessage(err)), "ltr")
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}

	var sErr *summarizer.Error
	if errors.As(err, &sErr) {
		return sErr.Message
	}

	return err.Error()
}

func render(body template.HTML, direction string) string {
	return string(execute(overlayTmpl, overlayData{
		ID:        ContainerID,
		Direction: direction,
		Body:      body,
	}))
}

func execute(t *template.Template, data any) template.HTML {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return template.HTML(template.HTMLEscapeString(err.Error()))
	}
	//nolint:gosec // Output of html/template is already escaped.
	return template.HTML(buf.String())
}
