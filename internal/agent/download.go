package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// maxImageBytes bounds a single downloaded image
const maxImageBytes = 10 << 20

// HTTPDownloader stores generated images under a static directory
type HTTPDownloader struct {
	client    *http.Client
	dir       string
	urlPrefix string
}

// NewHTTPDownloader creates a downloader writing to dir and serving under urlPrefix
func NewHTTPDownloader(dir, urlPrefix string, timeout time.Duration) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDownloader{
		client:    &http.Client{Timeout: timeout},
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}
}

// Download fetches sourceURL into {cacheKey}_{shortHash}.png. Local paths
// are returned unchanged.
func (d *HTTPDownloader) Download(ctx context.Context, sourceURL, cacheKey string) (string, error) {
	if strings.HasPrefix(sourceURL, "/") {
		return sourceURL, nil
	}

	name := fmt.Sprintf("%s_%s.png", cacheKey, md5Hex(sourceURL)[:8])
	target := filepath.Join(d.dir, name)
	served := path.Join(d.urlPrefix, name)
	if !strings.HasPrefix(served, "/") {
		served = "/" + served
	}

	if _, err := os.Stat(target); err == nil {
		return served, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create static directory: %w", err)
	}
	tmp, err := os.CreateTemp(d.dir, name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageBytes))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	slog.Debug("HTTPDownloader.Download: stored image", "path", target, "bytes", n)
	return served, nil
}
