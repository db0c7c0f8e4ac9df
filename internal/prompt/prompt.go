package prompt

import (
	"strings"
)

const DefaultLanguage = "English"

const instructions = `Summarize the page content below.

Rules:
- First line: one headline sentence prefixed with "# ". If the page title is clickbait, the headline must directly answer the question or promise of that title.
- Then 3 to 5 bullet points, each on its own line prefixed with "* ", 6-10 words each. Prefer 3 unless more are needed.
- Last line: an expanded summary of 2-3 sentences prefixed with "> ".
- When the title is ambiguous, rely only on explicit content such as numbers and names.
- Do not use HTML or any markdown other than the "# ", "* " and "> " line prefixes.
`

// Build returns the summarization prompt for sourceText written in
// targetLanguage. Inputs are interpolated verbatim.
func Build(sourceText, targetLanguage string) string {
	language := strings.TrimSpace(targetLanguage)
	if language == "" {
		language = DefaultLanguage
	}

	b := strings.Builder{}
	b.Grow(len(instructions) + len(language) + len(sourceText) + 64)

	b.WriteString(instructions)
	b.WriteString("- Respond in ")
	b.WriteString(language)
	b.WriteString(".\n\nContent:\n")
	b.WriteString(sourceText)

	return b.String()
}
