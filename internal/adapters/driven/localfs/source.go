// Package localfs serves documents from a directory on disk.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Ensure Source implements DocumentSource
var _ driven.DocumentSource = (*Source)(nil)

// Source is a DocumentSource over a local folder tree.
// File IDs are slash-separated paths relative to the root.
type Source struct {
	root   *os.Root
	dir    string
	logger *slog.Logger
}

// NewSource opens dir as the document root
func NewSource(dir string, logger *slog.Logger) (*Source, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty root directory", domain.ErrInvalidInput)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open root %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		root:   root,
		dir:    dir,
		logger: logger.With("component", "localfs", "root", dir),
	}, nil
}

// Name identifies the source in logs
func (s *Source) Name() string {
	return "localfs"
}

// List returns the regular files directly under dir, sorted by name.
// Hidden files and subdirectories are skipped.
func (s *Source) List(ctx context.Context, dir string) ([]domain.RemoteFile, error) {
	rel, err := cleanRel(dir)
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(s.root.FS(), rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: folder %s", domain.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	files := make([]domain.RemoteFile, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("skipping unreadable file", "name", entry.Name(), "error", err)
			continue
		}
		id := path.Join(rel, entry.Name())
		files = append(files, domain.RemoteFile{
			ID:       id,
			Name:     entry.Name(),
			WebURL:   "file://" + filepath.ToSlash(filepath.Join(s.dir, filepath.FromSlash(id))),
			MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(entry.Name()))),
			Size:     info.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Download reads a file by ID. IDs cannot escape the root.
func (s *Source) Download(ctx context.Context, fileID string) ([]byte, error) {
	rel, err := cleanRel(fileID)
	if err != nil {
		return nil, err
	}
	if rel == "." {
		return nil, fmt.Errorf("%w: empty file id", domain.ErrInvalidInput)
	}

	f, err := s.root.Open(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("open %s: %w", fileID, err)
	}
	defer f.Close()

	return io.ReadAll(f)
}

// Close releases the root directory handle
func (s *Source) Close() error {
	return s.root.Close()
}

func cleanRel(p string) (string, error) {
	p = strings.Trim(filepath.ToSlash(p), "/")
	if p == "" {
		return ".", nil
	}
	p = path.Clean(p)
	if !fs.ValidPath(p) {
		return "", fmt.Errorf("%w: path %q escapes the document root", domain.ErrInvalidInput, p)
	}
	return p, nil
}
