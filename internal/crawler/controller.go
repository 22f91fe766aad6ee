package crawler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobHandle is the live view of one crawl job. The engine mutates it while
// running; readers get consistent snapshots without blocking engine work.
type JobHandle struct {
	mu     sync.Mutex
	job    CrawlJob
	cancel context.CancelFunc
	done   chan struct{}
}

func newJobHandle(id, query string, started time.Time, cancel context.CancelFunc) *JobHandle {
	return &JobHandle{
		job: CrawlJob{
			ID:      id,
			Status:  JobStatusRunning,
			Query:   query,
			Started: &started,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the job ID.
func (h *JobHandle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job.ID
}

// Done is closed when the job reaches a terminal status.
func (h *JobHandle) Done() <-chan struct{} {
	return h.done
}

// Snapshot returns a copy of the current job state and counters.
func (h *JobHandle) Snapshot() CrawlJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job
}

func (h *JobHandle) itemFound() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Counters.ItemsFound++
}

func (h *JobHandle) itemDownloaded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Counters.ItemsDownloaded++
}

func (h *JobHandle) itemFailed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Counters.FailedCount++
}

func (h *JobHandle) pageProcessed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Counters.PagesProcessed++
}

// markStopping flips a running job to stopping; terminal jobs are left alone.
func (h *JobHandle) markStopping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.job.Status != JobStatusRunning {
		return false
	}
	h.job.Status = JobStatusStopping
	return true
}

func (h *JobHandle) finish(status JobStatus, errText string, now time.Time) {
	h.mu.Lock()
	if h.job.Status == JobStatusRunning || h.job.Status == JobStatusStopping {
		h.job.Status = status
		h.job.Stopped = &now
		h.job.LastError = errText
	}
	h.mu.Unlock()
	close(h.done)
}

func (h *JobHandle) active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job.Status == JobStatusRunning || h.job.Status == JobStatusStopping
}

// ControllerConfig sets defaults applied when Start receives zero values.
type ControllerConfig struct {
	DefaultConcurrency int
	DefaultMaxPages    int
}

// Controller owns the single-active-job invariant and exposes start, stop,
// and status to the hosting layer.
type Controller struct {
	mu      sync.Mutex
	current *JobHandle

	engine *Engine
	clock  Clock
	ids    IDGenerator
	cfg    ControllerConfig
	logger *zap.Logger
}

// NewController constructs a Controller around one engine.
func NewController(engine *Engine, clock Clock, ids IDGenerator, cfg ControllerConfig, logger *zap.Logger) *Controller {
	if cfg.DefaultConcurrency <= 0 {
		cfg.DefaultConcurrency = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{engine: engine, clock: clock, ids: ids, cfg: cfg, logger: logger}
}

// Start installs a new running job and launches the engine asynchronously.
// It returns ErrJobConflict while a job is running or stopping.
func (c *Controller) Start(query string, concurrency, maxPages int) (*JobHandle, error) {
	if concurrency <= 0 {
		concurrency = c.cfg.DefaultConcurrency
	}
	if maxPages < 0 {
		maxPages = c.cfg.DefaultMaxPages
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.active() {
		return nil, ErrJobConflict
	}

	id, err := c.ids.NewID()
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	handle := newJobHandle(id, query, c.clock.Now(), cancel)
	c.current = handle

	c.logger.Info("starting crawl job",
		zap.String("job_id", id),
		zap.String("query", query),
		zap.Int("concurrency", concurrency),
		zap.Int("max_pages", maxPages),
	)
	go c.engine.Run(runCtx, handle, RunParams{
		Query:       query,
		Concurrency: concurrency,
		MaxPages:    maxPages,
	})
	return handle, nil
}

// Stop requests cooperative cancellation of the active job. It is a no-op
// when no job is active and returns immediately; the engine finishes its
// in-flight work before the job reports stopped.
func (c *Controller) Stop() {
	c.mu.Lock()
	handle := c.current
	c.mu.Unlock()
	if handle == nil {
		return
	}
	if handle.markStopping() {
		c.logger.Info("stopping crawl job", zap.String("job_id", handle.ID()))
		handle.cancel()
	}
}

// Status returns a non-blocking snapshot of the current job, or an idle
// placeholder when no job has run.
func (c *Controller) Status() CrawlJob {
	c.mu.Lock()
	handle := c.current
	c.mu.Unlock()
	if handle == nil {
		return CrawlJob{Status: JobStatusIdle}
	}
	return handle.Snapshot()
}
