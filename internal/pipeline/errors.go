package pipeline

import (
	"errors"
	"fmt"
)

var ErrNoExtractor = errors.New("page extractor is not configured")

// ExtractError reports that the page could not be turned into text.
type ExtractError struct {
	URL string
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract page (URL = %s): %v", e.URL, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
