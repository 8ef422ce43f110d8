package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for expiry dates.
const DateLayout = "2006-01-02"

// Document represents a file indexed from the remote document source.
// SourceID is the natural key: there is at most one Document per SourceID.
type Document struct {
	ID           string     `json:"id"`
	SourceID     string     `json:"source_id"`
	Filename     string     `json:"filename"`
	FilePath     string     `json:"filepath"`
	Summary      string     `json:"summary"`
	ContentHash  string     `json:"content_hash"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	DocumentType string     `json:"document_type"`
	Language     string     `json:"language"`
	IndexedAt    time.Time  `json:"indexed_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsExpired reports whether the document's expiry date is strictly before
// the calendar date of now. Documents without an expiry never expire.
func (d *Document) IsExpired(now time.Time) bool {
	if d.ExpiryDate == nil {
		return false
	}
	return d.ExpiryDate.Before(Today(now))
}

// IsActive reports whether the document can be offered as an attachment:
// it has no expiry date, or the expiry date is after today.
func (d *Document) IsActive(now time.Time) bool {
	if d.ExpiryDate == nil {
		return true
	}
	return d.ExpiryDate.After(Today(now))
}

// SearchSurface returns the lower-cased text used for phrase matching.
func (d *Document) SearchSurface() string {
	return strings.ToLower(d.Filename + " " + d.Summary + " " + d.DocumentType)
}

// ApplyAnalysis copies analyzer-derived metadata onto the document.
func (d *Document) ApplyAnalysis(a *DocumentAnalysis) {
	d.Summary = a.Summary
	d.ExpiryDate = a.ExpiryDate
	d.DocumentType = a.DocumentType
	d.Language = a.Language
}

// Today truncates t to midnight UTC of its calendar date.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q is not %s", ErrInvalidInput, s, DateLayout)
	}
	return &t, nil
}

// RemoteFile is a file entry reported by a document source listing.
type RemoteFile struct {
	// ID is stable across listings for the same file
	ID       string `json:"id"`
	Name     string `json:"name"`
	WebURL   string `json:"web_url"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}
