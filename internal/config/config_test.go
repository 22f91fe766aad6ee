package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CRAWLER_PEXELS_SECRET_KEY", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "test-secret", cfg.Pexels.SecretKey)
	require.Equal(t, "https://www.pexels.com/en-us/api/v3", cfg.Pexels.BaseURL)
	require.Equal(t, 2, cfg.Crawler.Concurrency)
	require.Equal(t, 1, cfg.Crawler.RateRequests)
	require.Equal(t, 30*time.Second, cfg.RateWindow())
	require.Equal(t, 24, cfg.Crawler.PerPage)
	require.Equal(t, 5, cfg.Crawler.MaxPages)
	require.Equal(t, 3, cfg.Crawler.MaxRetries)
	require.Equal(t, 250*time.Millisecond, cfg.BackoffInitial())
	require.Equal(t, 5*time.Second, cfg.BackoffMax())
	require.Equal(t, 30*time.Second, cfg.DownloadTimeout())
	require.Equal(t, "pexels", cfg.Crawler.Source)
	require.Contains(t, cfg.Crawler.DefaultQueries, "sports car")
	require.Equal(t, "local", cfg.Storage.Provider)
	require.Equal(t, "memory", cfg.DB.Provider)
}

func TestLoad_RequiresSecretKey(t *testing.T) {
	t.Setenv("CRAWLER_PEXELS_SECRET_KEY", "")

	_, err := Load("")
	require.ErrorContains(t, err, "pexels.secret_key")
}

func TestLoad_ConfigFileOverridesDefaults(t *testing.T) {
	t.Setenv("CRAWLER_PEXELS_SECRET_KEY", "test-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
crawler:
  concurrency: 8
  per_page: 50
storage:
  provider: gcs
  gcs_bucket: crawl-blobs
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Crawler.Concurrency)
	require.Equal(t, 50, cfg.Crawler.PerPage)
	require.Equal(t, "gcs", cfg.Storage.Provider)
	require.Equal(t, "crawl-blobs", cfg.Storage.GCSBucket)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Pexels: PexelsConfig{SecretKey: "k"},
			Crawler: CrawlerConfig{
				Concurrency:       2,
				RateRequests:      1,
				RateWindowSeconds: 30,
				PerPage:           24,
			},
			Storage: StorageConfig{Provider: "local", BaseDir: "blob"},
			DB:      DBConfig{Provider: "memory"},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Crawler.Concurrency = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Crawler.RateWindowSeconds = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage = StorageConfig{Provider: "gcs"}
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.DB = DBConfig{Provider: "postgres"}
	require.Error(t, cfg.Validate())
}
