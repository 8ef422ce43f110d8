package domain

import "time"

// IndexStats holds counters for a single indexing run
type IndexStats struct {
	FilesListed      int `json:"files_listed"`
	FilesSkipped     int `json:"files_skipped"`   // unsupported type
	FilesUnchanged   int `json:"files_unchanged"` // fingerprint matched
	DocumentsAdded   int `json:"documents_added"`
	DocumentsUpdated int `json:"documents_updated"`
	Errors           int `json:"errors"`
}

// IndexResult is the outcome of an indexing run
type IndexResult struct {
	RootPath       string      `json:"root_path"`
	Stats          IndexStats  `json:"stats"`
	Expired        []*Document `json:"expired"`
	TotalDocuments int         `json:"total_documents"` // store size after the run
	Error          string      `json:"error,omitempty"`
	Duration       float64     `json:"duration_seconds"`
}

// IntakeStats holds counters for a single intake run
type IntakeStats struct {
	MessagesFetched int `json:"messages_fetched"`
	Duplicates      int `json:"duplicates"`
	RequestsCreated int `json:"requests_created"`
	DraftsCreated   int `json:"drafts_created"`
	DraftFailures   int `json:"draft_failures"`
	Errors          int `json:"errors"`
}

// IntakeResult is the outcome of an intake run
type IntakeResult struct {
	Stats    IntakeStats `json:"stats"`
	Error    string      `json:"error,omitempty"`
	Duration float64     `json:"duration_seconds"`
}

// RetryResult is the outcome of re-drafting pending requests
type RetryResult struct {
	Pending  int `json:"pending"`
	Drafted  int `json:"drafted"`
	Repaired int `json:"repaired"` // response existed, request only needed marking
	Failed   int `json:"failed"`
}

func elapsed(start time.Time) float64 {
	return time.Since(start).Seconds()
}

// Finish records the run duration
func (r *IndexResult) Finish(start time.Time) { r.Duration = elapsed(start) }

// Finish records the run duration
func (r *IntakeResult) Finish(start time.Time) { r.Duration = elapsed(start) }
