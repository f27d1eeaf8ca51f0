// Package download fetches sample media over HTTP with retries.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/version"
)

// ErrHTTPStatus is wrapped when the server answers with a non-2xx status.
var ErrHTTPStatus = errors.New("unexpected http status")

// ProgressFunc receives the bytes written so far and the content length,
// which is -1 when the server does not announce it.
type ProgressFunc func(downloaded, total int64)

// Downloader writes remote files to disk. Partial files never appear under
// the final name.
type Downloader struct {
	client *retryablehttp.Client
	logger *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithRetry sets the retry count and the backoff bounds.
func WithRetry(retries int, waitMin, waitMax time.Duration) Option {
	return func(d *Downloader) {
		d.client.RetryMax = retries
		d.client.RetryWaitMin = waitMin
		d.client.RetryWaitMax = waitMax
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.client.HTTPClient = c
	}
}

// WithLogger sets the logger used for download and retry messages.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
		d.client.Logger = logger
	}
}

// New returns a Downloader with three retries and a 30 minute overall timeout.
func New(opts ...Option) *Downloader {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 30 * time.Minute

	logger := logging.GetLogger("download")
	client.Logger = logger

	d := &Downloader{client: client, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches url into dest. Data goes to dest+".part" first and is
// renamed once complete, so an interrupted download never looks finished.
func (d *Downloader) Download(ctx context.Context, url, dest string, progress ProgressFunc) error {
	d.logger.Info("Downloading", "url", url, "dest", dest)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: %w: %s", url, ErrHTTPStatus, resp.Status)
	}

	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}

	w := &progressWriter{total: resp.ContentLength, fn: progress}
	_, copyErr := io.Copy(f, io.TeeReader(resp.Body, w))
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(part)
		return fmt.Errorf("write %s: %w", dest, copyErr)
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("finalize %s: %w", dest, err)
	}

	d.logger.Info("Download completed", "dest", dest, "bytes", w.written)
	return nil
}

type progressWriter struct {
	written int64
	total   int64
	fn      ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.fn != nil {
		w.fn(w.written, w.total)
	}
	return len(p), nil
}
