package markdown

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `._[](){}#|!+-=*~>` + "`" + `\`

const (
	boldOpen  = "\x00"
	boldClose = "\x01"
)

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = func() [256]bool {
	var m [256]bool
	for i := range len(mdV2SpecialChars) {
		m[mdV2SpecialChars[i]] = true
	}
	return m
}()

func EscapeV2(input string) string {
	charsToEscape := 0

	for i := range len(input) {
		if mdV2Lookup[input[i]] {
			charsToEscape++
		}
	}

	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if mdV2Lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

// TelegramV2 renders summary text with the same line grammar as Render, as
// Telegram MarkdownV2.
func TelegramV2(summaryText string) string {
	var out []string

	for _, l := range parseLines(summaryText, markBold) {
		switch l.kind {
		case lineHeading:
			out = append(out, "*"+EscapeV2(stripBold(l.content))+"*", "")
		case lineListItem:
			out = append(out, "• "+escapeMarked(l.content))
		case lineQuote:
			if len(out) > 0 && out[len(out)-1] != "" {
				out = append(out, "")
			}
			out = append(out, ">"+escapeMarked(l.content))
		default:
			out = append(out, escapeMarked(l.content))
		}
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func markBold(s string) string {
	return boldRe.ReplaceAllString(s, boldOpen+"$1"+boldClose)
}

func stripBold(s string) string {
	return strings.NewReplacer(boldOpen, "", boldClose, "").Replace(s)
}

// escapeMarked escapes s and turns bold markers into MarkdownV2 bold.
func escapeMarked(s string) string {
	var b strings.Builder

	for {
		start := strings.Index(s, boldOpen)
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], boldClose)
		if end < 0 {
			break
		}
		end += start

		b.WriteString(EscapeV2(s[:start]))
		if inner := s[start+len(boldOpen) : end]; inner != "" {
			b.WriteString("*" + EscapeV2(inner) + "*")
		}
		s = s[end+len(boldClose):]
	}

	b.WriteString(EscapeV2(stripBold(s)))

	return b.String()
}
