package domain

// SummaryRequest is one user-initiated summarize action.
type SummaryRequest struct {
	SourceText     string
	TargetLanguage string
	APIKey         string
}

type Summary struct {
	Text     string
	HTML     string
	Language string
}

type Page struct {
	URL   string
	Title string
	Text  string
}

type UserSettings struct {
	UserID        int64
	Language      string
	DigestHourUTC int64
}

type WatchedPage struct {
	ID     int64
	UserID int64
	URL    string
	Title  string
}
