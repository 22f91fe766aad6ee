package crawler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harryguci/Car-Resource-Crawler/internal/metrics"
)

// DownloaderConfig controls per-item download behavior.
type DownloaderConfig struct {
	// Timeout bounds one transfer attempt, including the blob write.
	Timeout time.Duration
	// PathPrefix namespaces blob keys, e.g. "pexels".
	PathPrefix string
	UserAgent  string
}

// Downloader fetches the bytes for one resource and hands them to the blob
// store, which performs the atomic write into place.
type Downloader struct {
	client *http.Client
	blobs  BlobStore
	clock  Clock
	cfg    DownloaderConfig
	logger *zap.Logger
}

// NewDownloader constructs a Downloader. A nil client falls back to
// http.DefaultClient; the per-attempt timeout is applied via context.
func NewDownloader(client *http.Client, blobs BlobStore, clock Clock, cfg DownloaderConfig, logger *zap.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{client: client, blobs: blobs, clock: clock, cfg: cfg, logger: logger}
}

// Fetch downloads res.URL and writes the bytes through the blob store.
// Failures of any kind are reported as a DownloadError carrying the cause.
func (d *Downloader) Fetch(ctx context.Context, res ImageResource) (FileInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return FileInfo{}, &DownloadError{URL: res.URL, Cause: err}
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return FileInfo{}, &DownloadError{URL: res.URL, Cause: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			d.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return FileInfo{}, &DownloadError{URL: res.URL, Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FileInfo{}, &DownloadError{URL: res.URL, Cause: fmt.Errorf("read body: %w", err)}
	}
	if len(body) == 0 {
		return FileInfo{}, &DownloadError{URL: res.URL, Cause: fmt.Errorf("empty response body")}
	}

	format := imageFormat(res.URL, resp.Header.Get("Content-Type"))
	filename := res.Filename
	if filename == "" {
		filename = BuildFilename(res.Photographer, res.ID, format, d.clock.Now())
	}
	key := filename
	if d.cfg.PathPrefix != "" {
		key = path.Join(d.cfg.PathPrefix, filename)
	}

	stored, err := d.blobs.WriteAtomic(ctx, key, body)
	if err != nil {
		return FileInfo{}, &DownloadError{URL: res.URL, Cause: fmt.Errorf("write blob: %w", err)}
	}
	metrics.DownloadedBytes(int64(len(body)))

	return FileInfo{
		FilePath: stored,
		FileSize: int64(len(body)),
		Width:    res.Width,
		Height:   res.Height,
		Format:   format,
	}, nil
}

// BuildFilename produces "<photographer>_<id>_<timestamp>.<ext>" with the
// photographer name reduced to filesystem-safe characters.
func BuildFilename(photographer, id, format string, now time.Time) string {
	who := sanitizeName(photographer)
	if who == "" {
		who = "unknown"
	}
	if format == "" {
		format = "jpg"
	}
	return fmt.Sprintf("%s_%s_%s.%s", who, id, now.Format("20060102_150405"), format)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// imageFormat derives the image format from the URL extension, falling back
// to the response content type, then to jpg.
func imageFormat(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
			return strings.ToLower(ext)
		}
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if idx := strings.Index(mt, "/"); idx >= 0 && strings.HasPrefix(mt, "image/") {
			return mt[idx+1:]
		}
	}
	return "jpg"
}
