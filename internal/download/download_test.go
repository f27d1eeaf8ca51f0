package download

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func newTestDownloader() *Downloader {
	return New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetry(2, time.Millisecond, 5*time.Millisecond),
	)
}

func TestDownloadWritesFileAndReportsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("fakecam"), 20000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "clip.mp4")

	var last, total int64
	calls := 0
	err := newTestDownloader().Download(context.Background(), srv.URL, dest, func(d, tot int64) {
		if d < last {
			t.Errorf("progress went backwards: %d after %d", d, last)
		}
		last, total = d, tot
		calls++
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded %d bytes, want %d", len(got), len(payload))
	}
	if calls == 0 || last != int64(len(payload)) || total != int64(len(payload)) {
		t.Errorf("progress calls=%d last=%d total=%d", calls, last, total)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error(".part file left behind")
	}
}

func TestDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "missing.mp4")
	err := newTestDownloader().Download(context.Background(), srv.URL, dest, nil)
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("Download() error = %v, want ErrHTTPStatus", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination created for failed download")
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "retry.mp4")
	if err := newTestDownloader().Download(context.Background(), srv.URL, dest, nil); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
}

func TestDownloadGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "never.mp4")
	if err := newTestDownloader().Download(context.Background(), srv.URL, dest, nil); err == nil {
		t.Fatal("Download() succeeded against a failing server")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination created for failed download")
	}
}

func TestDownloadCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "canceled.mp4")
	if err := newTestDownloader().Download(ctx, srv.URL, dest, nil); err == nil {
		t.Fatal("Download() succeeded with canceled context")
	}
}
