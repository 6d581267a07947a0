package models

import "time"

// Status is the availability recorded for a tracked grant page.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
	StatusError  Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusError:
		return true
	}
	return false
}

// ParseStatus maps a stored status string back to a Status.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.Valid()
}

type GrantRecord struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Status      Status    `json:"status"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// GrantSummary is the listing projection of a GrantRecord.
type GrantSummary struct {
	ID     int64  `json:"id"`
	URL    string `json:"url"`
	Status Status `json:"status"`
}

// FetchResult is either a fetched page text or the reason the fetch failed.
// Build it with Success or Failure.
type FetchResult struct {
	URL      string
	Text     string
	Reason   string
	Duration time.Duration
	ok       bool
}

func Success(url, text string, took time.Duration) FetchResult {
	return FetchResult{URL: url, Text: text, Duration: took, ok: true}
}

func Failure(url string, err error, took time.Duration) FetchResult {
	reason := "unknown fetch failure"
	if err != nil {
		reason = err.Error()
	}
	return FetchResult{URL: url, Reason: reason, Duration: took}
}

// OK is true for a Success result.
func (r FetchResult) OK() bool { return r.ok }

// Outcome says what an upsert did to the store.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
)

// Report is the result of tracking one source in a single pass.
type Report struct {
	Source  string  `json:"source"`
	URL     string  `json:"url"`
	Status  Status  `json:"status"`
	Outcome Outcome `json:"outcome"`
	FetchMs int64   `json:"fetchMs"`
	Error   string  `json:"error,omitempty"`
}
