package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	localstorage "github.com/Harryguci/Car-Resource-Crawler/internal/storage/local"
)

func testBlobStore(t *testing.T) *localstorage.BlobStore {
	t.Helper()
	blobs, err := localstorage.New(localstorage.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return blobs
}

func TestDownloader_FetchWritesBlob(t *testing.T) {
	t.Parallel()

	payload := []byte("\xff\xd8\xff fake jpeg bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	blobs := testBlobStore(t)
	clk := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := NewDownloader(srv.Client(), blobs, clk, DownloaderConfig{
		Timeout:    time.Second,
		PathPrefix: "pexels",
	}, zap.NewNop())

	res := ImageResource{
		ID:           "res-1",
		URL:          srv.URL + "/photos/1/large2x.jpg",
		Width:        1920,
		Height:       1080,
		Photographer: "Jane Doe",
	}
	info, err := d.Fetch(context.Background(), res)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), info.FileSize)
	require.Equal(t, 1920, info.Width)
	require.Equal(t, 1080, info.Height)
	require.Equal(t, "jpg", info.Format)

	data, err := os.ReadFile(info.FilePath)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestDownloader_ServerErrorIsDownloadError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), testBlobStore(t), &fakeClock{now: time.Unix(1000, 0)}, DownloaderConfig{Timeout: time.Second}, zap.NewNop())

	_, err := d.Fetch(context.Background(), ImageResource{ID: "res-1", URL: srv.URL + "/a.jpg"})
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	require.Contains(t, dlErr.Error(), "500")
}

func TestDownloader_TimeoutIsDownloadError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := NewDownloader(srv.Client(), testBlobStore(t), &fakeClock{now: time.Unix(1000, 0)}, DownloaderConfig{Timeout: 20 * time.Millisecond}, zap.NewNop())

	_, err := d.Fetch(context.Background(), ImageResource{ID: "res-1", URL: srv.URL + "/a.jpg"})
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)

	// The per-attempt timeout must stay retryable.
	p := NewExponentialRetryPolicy(3, time.Millisecond, 10*time.Millisecond)
	require.True(t, p.ShouldRetry(err, 0))
}

func TestDownloader_EmptyBodyIsDownloadError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), testBlobStore(t), &fakeClock{now: time.Unix(1000, 0)}, DownloaderConfig{Timeout: time.Second}, zap.NewNop())

	_, err := d.Fetch(context.Background(), ImageResource{ID: "res-1", URL: srv.URL + "/a.jpg"})
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
}

func TestBuildFilename(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 30, 45, 0, time.UTC)
	got := BuildFilename("Jane Doe", "12345", "jpg", now)
	require.Equal(t, "Jane_Doe_12345_20250301_123045.jpg", got)

	require.Equal(t, "unknown_1_20250301_123045.jpg", BuildFilename("", "1", "jpg", now))
	require.Equal(t, "Ansel_Adams_1_20250301_123045.png", BuildFilename("Ansel Adams!?", "1", "png", now))
}

func TestImageFormat(t *testing.T) {
	t.Parallel()

	require.Equal(t, "jpeg", imageFormat("https://example.com/a.jpeg?w=100", ""))
	require.Equal(t, "png", imageFormat("https://example.com/b.png", "image/jpeg"))
	require.Equal(t, "webp", imageFormat("https://example.com/photo", "image/webp"))
	require.Equal(t, "jpg", imageFormat("https://example.com/photo", "text/html"))
}
