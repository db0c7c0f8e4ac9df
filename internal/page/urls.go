package page

import (
	"fmt"
	"strings"

	"mvdan.cc/xurls/v2"
)

// FindURLs returns the distinct http(s) URLs in text in order of appearance.
func FindURLs(text string) ([]string, error) {
	re, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	found := re.FindAllString(text, -1)
	urls := make([]string, 0, len(found))
	seen := make(map[string]struct{}, len(found))

	for _, u := range found {
		u = strings.TrimSpace(u)
		if _, ok := seen[u]; ok {
			continue
		}

		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	return urls, nil
}
