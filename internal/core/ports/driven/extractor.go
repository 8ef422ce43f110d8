package driven

import "context"

// ContentExtractor turns raw file bytes into plain text.
type ContentExtractor interface {
	// Extract returns the text content of data
	Extract(ctx context.Context, data []byte) (string, error)

	// SupportedTypes returns MIME types this extractor handles.
	// Can include wildcards like "text/*".
	SupportedTypes() []string

	// Priority returns the extractor priority (higher = more specific).
	//   50-89: Format-specific (PDF, Markdown)
	//   10-49: Generic (plain text)
	Priority() int
}

// ExtractorRegistry selects extractors by MIME type.
// When multiple extractors match, the highest priority one is used.
type ExtractorRegistry interface {
	// Get retrieves the best-matching extractor for a MIME type, or nil
	Get(mimeType string) ContentExtractor

	// Register registers an extractor
	Register(extractor ContentExtractor)

	// List returns all registered MIME types
	List() []string
}
