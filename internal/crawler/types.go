// Package crawler implements the background crawl engine: job control,
// rate-limited paginated search, per-item deduplication, and the download
// lifecycle for catalog image resources.
package crawler

import "time"

// DownloadStatus is the lifecycle state of one ImageResource.
type DownloadStatus string

// Download status values persisted on each resource.
const (
	StatusPending     DownloadStatus = "pending"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
)

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

// Job status values. At most one job is running or stopping at any time.
const (
	JobStatusIdle     JobStatus = "idle"
	JobStatusRunning  JobStatus = "running"
	JobStatusStopping JobStatus = "stopping"
	JobStatusStopped  JobStatus = "stopped"
	JobStatusFailed   JobStatus = "failed"
)

// ImageResource is one catalog entry. URL is globally unique.
type ImageResource struct {
	ID              string         `json:"id"`
	URL             string         `json:"url"`
	Filename        string         `json:"filename,omitempty"`
	FilePath        string         `json:"file_path,omitempty"`
	FileSize        int64          `json:"file_size,omitempty"`
	Width           int            `json:"width,omitempty"`
	Height          int            `json:"height,omitempty"`
	Format          string         `json:"format,omitempty"`
	Source          string         `json:"source,omitempty"`
	SearchQuery     string         `json:"search_query,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	Description     string         `json:"description,omitempty"`
	Photographer    string         `json:"photographer,omitempty"`
	PhotographerURL string         `json:"photographer_url,omitempty"`
	DownloadStatus  DownloadStatus `json:"download_status"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// FileInfo carries the file metadata recorded when a download completes.
type FileInfo struct {
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
}

// JobCounters tracks progress stats for one crawl job.
type JobCounters struct {
	PagesProcessed  int `json:"pages_processed"`
	ItemsFound      int `json:"items_found"`
	ItemsDownloaded int `json:"items_downloaded"`
	FailedCount     int `json:"failed_count"`
}

// CrawlJob is the metadata for one run of the engine. A finished job's
// record persists until the next start overwrites it.
type CrawlJob struct {
	ID        string      `json:"id"`
	Status    JobStatus   `json:"status"`
	Query     string      `json:"query"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Stopped   *time.Time  `json:"stopped_at,omitempty"`
	Counters  JobCounters `json:"counters"`
	LastError string      `json:"last_error,omitempty"`
}

// SearchItem is one image returned by the provider search API.
type SearchItem struct {
	ID              string
	URL             string
	Width           int
	Height          int
	Photographer    string
	PhotographerURL string
	Description     string
	Tags            []string
}

// SearchPage is one page of provider search results.
type SearchPage struct {
	Items       []SearchItem
	Page        int
	HasNextPage bool
}
