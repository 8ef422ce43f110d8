package driven

import (
	"context"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// DocumentSource lists and downloads files from a remote folder tree
// (SharePoint drive, local directory).
type DocumentSource interface {
	// Name identifies the source in logs
	Name() string

	// List returns the files under path, in listing order.
	// Folders are not returned. File IDs are stable across calls.
	List(ctx context.Context, path string) ([]domain.RemoteFile, error)

	// Download returns the raw bytes of a file
	Download(ctx context.Context, fileID string) ([]byte, error)
}
