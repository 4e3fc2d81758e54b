// Package download fetches paper PDFs over HTTP and persists them
// under deterministic per-paper paths.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperflow/internal/util"
)

type Downloader struct {
	dir    string
	client *http.Client
	log    *zap.Logger
}

// New creates a downloader saving PDFs into dir. The timeout bounds the
// whole fetch so a stalled remote cannot hang a pipeline worker.
func New(dir string, timeout time.Duration, log *zap.Logger) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Downloader{
		dir:    dir,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Path returns the deterministic local path for a paper id.
func (d *Downloader) Path(paperID string) string {
	return filepath.Join(d.dir, SanitizeID(paperID)+".pdf")
}

// Fetch downloads the PDF at url and returns the saved path. An
// already-present file is reused without a network call. Non-2xx
// responses and transport faults yield util.ErrDownload.
func (d *Downloader) Fetch(ctx context.Context, url, paperID string) (string, error) {
	path := d.Path(paperID)
	if util.FileExists(path) {
		d.log.Debug("pdf already on disk", zap.String("paper_id", paperID), zap.String("path", path))
		return path, nil
	}
	if err := util.EnsureDir(d.dir); err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrDownload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", util.ErrDownload, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", util.ErrDownload, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: get %s: status %s", util.ErrDownload, url, resp.Status)
	}

	tmp, err := os.CreateTemp(d.dir, "dl-*.pdf")
	if err != nil {
		return "", fmt.Errorf("%w: create temp: %v", util.ErrDownload, err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: write pdf: %v", util.ErrDownload, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: close pdf: %v", util.ErrDownload, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: move pdf: %v", util.ErrDownload, err)
	}
	d.log.Info("pdf downloaded", zap.String("paper_id", paperID), zap.String("path", path))
	return path, nil
}

// SanitizeID makes a paper id filesystem and URL safe.
func SanitizeID(id string) string {
	r := strings.NewReplacer(".", "_", ":", "_", "/", "_")
	return r.Replace(id)
}
