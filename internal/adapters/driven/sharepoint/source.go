// Package sharepoint lists and downloads files from a SharePoint document
// library through Microsoft Graph.
package sharepoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Ensure Source implements DocumentSource
var _ driven.DocumentSource = (*Source)(nil)

const (
	DefaultGraphURL = "https://graph.microsoft.com/v1.0"
	graphScope      = "https://graph.microsoft.com/.default"
)

// Config holds SharePoint connection settings
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// SiteURL is either a site URL (https://contoso.sharepoint.com/sites/Docs)
	// or a Graph site key (contoso.sharepoint.com:/sites/Docs)
	SiteURL string

	// GraphURL overrides the Graph endpoint
	GraphURL string
	// TokenURL overrides the Azure AD token endpoint
	TokenURL string

	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// DefaultConfig returns a Config with default endpoints and retry settings
func DefaultConfig() Config {
	return Config{
		GraphURL:   DefaultGraphURL,
		Timeout:    60 * time.Second,
		MaxRetries: 3,
	}
}

// Source is a DocumentSource backed by the default drive of a SharePoint site.
// The site and drive ids are resolved on first use.
type Source struct {
	httpClient *http.Client
	graphURL   string
	siteKey    string
	maxRetries int
	logger     *slog.Logger

	mu      sync.Mutex
	driveID string
}

// NewSource creates a SharePoint source authenticating with the OAuth2
// client-credentials flow.
func NewSource(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: tenant id, client id and client secret are required", domain.ErrInvalidInput)
	}
	siteKey, err := siteKeyFromURL(cfg.SiteURL)
	if err != nil {
		return nil, err
	}

	defaults := DefaultConfig()
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaults.GraphURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{graphScope},
	}
	httpClient := creds.Client(ctx)
	httpClient.Timeout = cfg.Timeout

	return &Source{
		httpClient: httpClient,
		graphURL:   strings.TrimSuffix(cfg.GraphURL, "/"),
		siteKey:    siteKey,
		maxRetries: cfg.MaxRetries,
		logger:     logger.With("component", "sharepoint", "site", siteKey),
	}, nil
}

// siteKeyFromURL turns a site URL into the host:/path form Graph expects
func siteKeyFromURL(siteURL string) (string, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		return "", fmt.Errorf("%w: site url is required", domain.ErrInvalidInput)
	}
	if !strings.Contains(siteURL, "://") {
		return strings.TrimSuffix(siteURL, "/"), nil
	}

	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: invalid site url %q", domain.ErrInvalidInput, siteURL)
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		return u.Host, nil
	}
	return u.Host + ":" + path, nil
}

// Name identifies the source in logs
func (s *Source) Name() string {
	return "sharepoint"
}

type driveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	WebURL string `json:"webUrl"`
	Size   int64  `json:"size"`
	File   *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
}

type childrenPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// List returns the files directly under path in the site's default drive.
// Folders are skipped. All result pages are followed.
func (s *Source) List(ctx context.Context, path string) ([]domain.RemoteFile, error) {
	driveID, err := s.drive(ctx)
	if err != nil {
		return nil, err
	}

	next := s.graphURL + childrenPath(driveID, path)
	files := make([]domain.RemoteFile, 0)
	for next != "" {
		var page childrenPage
		if err := s.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}
		for _, item := range page.Value {
			if item.Folder != nil || item.File == nil {
				continue
			}
			files = append(files, domain.RemoteFile{
				ID:       item.ID,
				Name:     item.Name,
				WebURL:   item.WebURL,
				MimeType: item.File.MimeType,
				Size:     item.Size,
			})
		}
		next = page.NextLink
	}

	s.logger.Debug("listed folder", "path", path, "files", len(files))
	return files, nil
}

func childrenPath(driveID, path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "/drives/" + url.PathEscape(driveID) + "/root/children"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/drives/" + url.PathEscape(driveID) + "/root:/" + strings.Join(segments, "/") + ":/children"
}

// Download returns the content of a drive item
func (s *Source) Download(ctx context.Context, fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: empty file id", domain.ErrInvalidInput)
	}
	driveID, err := s.drive(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(ctx, s.graphURL+"/drives/"+url.PathEscape(driveID)+"/items/"+url.PathEscape(fileID)+"/content")
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileID, err)
	}
	return data, nil
}

// drive resolves and caches the default drive id of the site
func (s *Source) drive(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driveID != "" {
		return s.driveID, nil
	}

	var site struct {
		ID string `json:"id"`
	}
	if err := s.getJSON(ctx, s.graphURL+"/sites/"+s.siteKey, &site); err != nil {
		return "", fmt.Errorf("resolve site: %w", err)
	}

	var drive struct {
		ID string `json:"id"`
	}
	if err := s.getJSON(ctx, s.graphURL+"/sites/"+url.PathEscape(site.ID)+"/drive", &drive); err != nil {
		return "", fmt.Errorf("resolve drive: %w", err)
	}
	if drive.ID == "" {
		return "", errors.New("resolve drive: empty drive id")
	}

	s.driveID = drive.ID
	s.logger.Info("resolved drive", "site_id", site.ID, "drive_id", drive.ID)
	return s.driveID, nil
}

func (s *Source) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := s.do(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do issues a GET, retrying throttled and server-side failures
func (s *Source) do(ctx context.Context, rawURL string) (*http.Response, error) {
	var resp *http.Response
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err = s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt >= s.maxRetries {
			break
		}

		wait := time.Duration(attempt+1) * time.Second
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 && secs < 300 {
			wait = time.Duration(secs) * time.Second
		}
		resp.Body.Close()
		s.logger.Warn("graph request throttled", "status", resp.StatusCode, "attempt", attempt+1, "wait", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: graph returned 404: %s", domain.ErrNotFound, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("graph API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
