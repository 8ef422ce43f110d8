// Package extractors turns downloaded file bytes into plain text for analysis.
package extractors

import (
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry implements ExtractorRegistry with priority-based selection.
// When multiple extractors match a MIME type, the highest priority one is used.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.ContentExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register registers an extractor.
func (r *Registry) Register(extractor driven.ContentExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, extractor)
}

// Get returns the best-matching extractor for a MIME type, or nil.
func (r *Registry) Get(mimeType string) driven.ContentExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best driven.ContentExtractor
	for _, e := range r.extractors {
		if !matchesMIMEType(e.SupportedTypes(), mimeType) {
			continue
		}
		if best == nil || e.Priority() > best.Priority() {
			best = e
		}
	}
	return best
}

// List returns all registered MIME types, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeSet := make(map[string]struct{})
	for _, e := range r.extractors {
		for _, t := range e.SupportedTypes() {
			typeSet[t] = struct{}{}
		}
	}

	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// matchesMIMEType reports whether mimeType is covered by supportedTypes.
// Parameters are ignored and "text/*" style wildcards are honoured.
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" {
		return false
	}

	for _, supported := range supportedTypes {
		supported = strings.ToLower(strings.TrimSpace(supported))
		if supported == mimeType {
			return true
		}
		if prefix, ok := strings.CutSuffix(supported, "*"); ok && strings.HasSuffix(prefix, "/") && strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}

// DefaultRegistry creates a registry with the built-in extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PDFExtractor{})
	r.Register(&PlaintextExtractor{})
	r.Register(&MarkdownExtractor{})
	r.Register(&HTMLExtractor{})
	return r
}
