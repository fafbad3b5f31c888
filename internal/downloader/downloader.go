// Package downloader implements HTTP downloads with bounded parallelism.
package downloader

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

// ProgressCallback is called as download bytes arrive.
type ProgressCallback func(downloadedBytes, totalBytes int64)

// Manager downloads files over HTTP, at most maxParallel at a time.
type Manager struct {
	client      *http.Client
	authToken   string
	maxParallel chan struct{}
}

// DefaultMaxParallel is the default concurrent download limit.
const DefaultMaxParallel = 4

// New creates a Manager with default settings.
func New() *Manager {
	m := &Manager{client: &http.Client{Timeout: 30 * time.Minute}}
	return m.MaxParallel(DefaultMaxParallel)
}

// MaxParallel sets the concurrent download limit. It returns the Manager to
// allow chaining.
func (m *Manager) MaxParallel(n int) *Manager {
	if n < 1 {
		n = 1
	}
	m.maxParallel = make(chan struct{}, n)
	return m
}

// WithAuthToken sets a bearer token attached to every request, for gated
// repositories. It returns the Manager to allow chaining.
func (m *Manager) WithAuthToken(token string) *Manager {
	m.authToken = token
	return m
}

// Download fetches url into filePath, truncating any previous content.
// progress may be nil.
func (m *Manager) Download(ctx context.Context, url, filePath string, progress ProgressCallback) error {
	select {
	case m.maxParallel <- struct{}{}:
		defer func() { <-m.maxParallel }()
	case <-ctx.Done():
		return ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to build request for %q", url)
	}
	if m.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.authToken)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %q", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetching %q: unexpected status %s", url, resp.Status)
	}

	out, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	defer out.Close()

	var done int64
	buf := make([]byte, 256*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return errors.Wrapf(err, "failed to write %q", filePath)
			}
			done += int64(n)
			if progress != nil {
				progress(done, resp.ContentLength)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return errors.Wrapf(readErr, "failed reading %q", url)
		}
	}
	return errors.Wrapf(out.Sync(), "failed to sync %q", filePath)
}
