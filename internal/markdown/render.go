package markdown

import (
	"regexp"
	"strings"
)

var (
	boldRe     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	headingRe  = regexp.MustCompile(`^#\s+(.*)`)
	quoteRe    = regexp.MustCompile(`^>\s+(.*)`)
	listItemRe = regexp.MustCompile(`^\*\s+(.*)`)
)

type lineKind int

const (
	lineText lineKind = iota
	lineHeading
	lineQuote
	lineListItem
)

type line struct {
	kind    lineKind
	content string
}

// Render converts summary text in the "# ", "* ", "> " line grammar to an
// HTML fragment. Content is not escaped.
func Render(summaryText string) string {
	var out []string
	inList := false

	for _, l := range parseLines(summaryText, convertBold) {
		if l.kind == lineListItem {
			if !inList {
				out = append(out, "<ul>")
				inList = true
			}
			out = append(out, "<li>"+l.content+"</li>")
			continue
		}

		if inList {
			out = append(out, "</ul>")
			inList = false
		}

		switch l.kind {
		case lineHeading:
			out = append(out, "<h1>"+l.content+"</h1>")
		case lineQuote:
			out = append(out, `<p class="expanded-summary">`+l.content+"</p>")
		default:
			out = append(out, l.content)
		}
	}

	if inList {
		out = append(out, "</ul>")
	}

	return strings.Join(out, "\n")
}

func convertBold(s string) string {
	return boldRe.ReplaceAllString(s, "<strong>$1</strong>")
}

// parseLines classifies every non-blank line. inline is applied to the raw
// line before classification.
func parseLines(text string, inline func(string) string) []line {
	rawLines := strings.Split(text, "\n")
	lines := make([]line, 0, len(rawLines))

	for _, raw := range rawLines {
		raw = strings.TrimSuffix(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		lines = append(lines, classify(inline(raw)))
	}

	return lines
}

func classify(s string) line {
	if m := headingRe.FindStringSubmatch(s); m != nil {
		return line{kind: lineHeading, content: m[1]}
	}

	if m := quoteRe.FindStringSubmatch(s); m != nil {
		return line{kind: lineQuote, content: m[1]}
	}

	item, ok := listItemContent(s)
	if !ok {
		return line{kind: lineText, content: s}
	}

	// An expanded summary never nests inside a list item.
	if m := quoteRe.FindStringSubmatch(item); m != nil {
		return line{kind: lineQuote, content: m[1]}
	}

	return line{kind: lineListItem, content: item}
}

func listItemContent(s string) (string, bool) {
	if m := listItemRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}

	trimmed := strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(trimmed, "*"); ok {
		return strings.TrimSpace(rest), true
	}

	return "", false
}
