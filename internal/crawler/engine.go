package crawler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harryguci/Car-Resource-Crawler/internal/metrics"
	"github.com/Harryguci/Car-Resource-Crawler/internal/policy/ratelimit"
)

// EngineConfig carries the per-process knobs for the crawl loop. Per-job
// values (query, concurrency, max pages) arrive through RunParams.
type EngineConfig struct {
	// Source labels created resources, e.g. "pexels".
	Source string
	// PerPage is the provider page size.
	PerPage int
	// CompletionTopic, when set together with a Publisher, receives one
	// event per finished job.
	CompletionTopic string
}

// RunParams are the arguments of one engine run.
type RunParams struct {
	Query       string
	Concurrency int
	// MaxPages caps the pagination loop; 0 means crawl until the provider
	// reports no further pages.
	MaxPages int
}

// Engine orchestrates pagination, dedup, download, and status updates for
// one crawl job. It composes the rate limiter, deduplicator, downloader,
// and status tracker, and routes every state change through the tracker.
type Engine struct {
	search    SearchClient
	store     Store
	dedup     *Deduplicator
	tracker   *StatusTracker
	fetcher   Fetcher
	limiter   *ratelimit.Limiter
	retry     *ExponentialRetryPolicy
	clock     Clock
	ids       IDGenerator
	publisher Publisher
	cfg       EngineConfig
	logger    *zap.Logger
}

// NewEngine constructs an Engine. publisher may be nil.
func NewEngine(
	search SearchClient,
	store Store,
	dedup *Deduplicator,
	tracker *StatusTracker,
	fetcher Fetcher,
	limiter *ratelimit.Limiter,
	retry *ExponentialRetryPolicy,
	clock Clock,
	ids IDGenerator,
	publisher Publisher,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 24
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		search:    search,
		store:     store,
		dedup:     dedup,
		tracker:   tracker,
		fetcher:   fetcher,
		limiter:   limiter,
		retry:     retry,
		clock:     clock,
		ids:       ids,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one crawl job to its terminal state. Cancellation of ctx is
// observed at page and item boundaries only; dispatched downloads finish
// naturally. Run never returns an error: all failure information lands on
// the job handle and the affected resources.
func (e *Engine) Run(ctx context.Context, job *JobHandle, params RunParams) {
	workers := params.Concurrency
	if workers <= 0 {
		workers = 1
	}
	tasks := make(chan ImageResource)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Detached from ctx so an in-flight item is never preempted
			// mid-transfer; the page loop stops feeding the channel.
			itemCtx := context.WithoutCancel(ctx)
			for res := range tasks {
				e.processItem(itemCtx, job, res)
			}
		}()
	}

	status, lastErr := e.pageLoop(ctx, job, params, tasks)
	close(tasks)
	wg.Wait()

	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}
	job.finish(status, errText, e.clock.Now())
	metrics.JobFinished(string(status))
	e.publishCompletion(job)
	e.logger.Info("crawl job finished",
		zap.String("job_id", job.ID()),
		zap.String("status", string(status)),
		zap.Any("counters", job.Snapshot().Counters),
	)
}

// pageLoop drives the rate-limited pagination and per-item dispatch. It
// returns the terminal job status and, for failed jobs, the fatal error.
func (e *Engine) pageLoop(ctx context.Context, job *JobHandle, params RunParams, tasks chan<- ImageResource) (JobStatus, error) {
	page := 1
	for {
		if ctx.Err() != nil {
			return JobStatusStopped, nil
		}
		if params.MaxPages > 0 && page > params.MaxPages {
			return JobStatusStopped, nil
		}

		result, err := e.searchPage(ctx, params.Query, page)
		if err != nil {
			if ctx.Err() != nil {
				return JobStatusStopped, nil
			}
			e.logger.Error("page fetch failed",
				zap.String("job_id", job.ID()),
				zap.Int("page", page),
				zap.Error(err),
			)
			return JobStatusFailed, err
		}

		for _, item := range result.Items {
			if ctx.Err() != nil {
				return JobStatusStopped, nil
			}
			job.itemFound()
			e.handleItem(ctx, job, params.Query, item, tasks)
		}

		job.pageProcessed()
		metrics.PageProcessed()
		if !result.HasNextPage {
			return JobStatusStopped, nil
		}
		page++
	}
}

// searchPage calls the provider behind the rate limiter, retrying transient
// failures with backoff. Fatal provider errors are returned immediately.
func (e *Engine) searchPage(ctx context.Context, query string, page int) (SearchPage, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return SearchPage{}, err
		}
		result, err := e.search.Search(ctx, query, page, e.cfg.PerPage)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !e.retry.ShouldRetry(err, attempt) {
			return SearchPage{}, lastErr
		}
		e.logger.Warn("retrying page fetch",
			zap.Int("page", page),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if !sleepCtx(ctx, e.retry.Backoff(attempt)) {
			return SearchPage{}, ctx.Err()
		}
	}
}

// handleItem runs the dedup -> create -> downloading sequence for one item
// and dispatches the download. Store errors are isolated to the item.
func (e *Engine) handleItem(ctx context.Context, job *JobHandle, query string, item SearchItem, tasks chan<- ImageResource) {
	if item.URL == "" {
		return
	}
	exists, err := e.dedup.Exists(ctx, item.URL)
	if err != nil {
		e.logger.Error("dedup check failed", zap.String("url", item.URL), zap.Error(err))
		return
	}
	if exists {
		e.logger.Debug("skipping known url", zap.String("url", item.URL))
		return
	}

	res, err := e.newResource(query, item)
	if err != nil {
		e.logger.Error("build resource failed", zap.String("url", item.URL), zap.Error(err))
		return
	}
	if err := e.store.CreateResource(ctx, res); err != nil {
		e.logger.Error("create resource failed", zap.String("url", item.URL), zap.Error(err))
		return
	}
	if err := e.tracker.Transition(ctx, res.ID, StatusDownloading, "", nil); err != nil {
		e.logger.Error("mark downloading failed", zap.String("resource_id", res.ID), zap.Error(err))
		return
	}

	select {
	case tasks <- res:
	case <-ctx.Done():
		// Marked downloading but never dispatched; fail it so nothing is
		// left mid-flight after the stop.
		e.failResource(context.WithoutCancel(ctx), job, res, "crawl stopped before download started")
	}
}

// processItem downloads one resource with bounded retries and records the
// terminal transition. It runs on an uncancelable context.
func (e *Engine) processItem(ctx context.Context, job *JobHandle, res ImageResource) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		info, err := e.fetcher.Fetch(ctx, res)
		if err == nil {
			if terr := e.tracker.Transition(ctx, res.ID, StatusCompleted, "", &info); terr != nil {
				e.logger.Error("mark completed failed", zap.String("resource_id", res.ID), zap.Error(terr))
				job.itemFailed()
				metrics.ImageFinished(string(StatusFailed))
				return
			}
			job.itemDownloaded()
			metrics.ImageFinished(string(StatusCompleted))
			return
		}
		lastErr = err
		if !e.retry.ShouldRetry(err, attempt) {
			break
		}
		e.logger.Warn("retrying download",
			zap.String("resource_id", res.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		time.Sleep(e.retry.Backoff(attempt))
	}
	e.failResource(ctx, job, res, lastErr.Error())
}

func (e *Engine) failResource(ctx context.Context, job *JobHandle, res ImageResource, msg string) {
	if err := e.tracker.Transition(ctx, res.ID, StatusFailed, msg, nil); err != nil {
		e.logger.Error("mark failed failed", zap.String("resource_id", res.ID), zap.Error(err))
	}
	job.itemFailed()
	metrics.ImageFinished(string(StatusFailed))
}

func (e *Engine) newResource(query string, item SearchItem) (ImageResource, error) {
	id, err := e.ids.NewID()
	if err != nil {
		return ImageResource{}, err
	}
	now := e.clock.Now()
	return ImageResource{
		ID:              id,
		URL:             item.URL,
		Width:           item.Width,
		Height:          item.Height,
		Source:          e.cfg.Source,
		SearchQuery:     query,
		Tags:            item.Tags,
		Description:     item.Description,
		Photographer:    item.Photographer,
		PhotographerURL: item.PhotographerURL,
		DownloadStatus:  StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (e *Engine) publishCompletion(job *JobHandle) {
	if e.publisher == nil || e.cfg.CompletionTopic == "" {
		return
	}
	snap := job.Snapshot()
	payload := map[string]any{
		"job_id":           snap.ID,
		"status":           string(snap.Status),
		"query":            snap.Query,
		"pages_processed":  snap.Counters.PagesProcessed,
		"items_found":      snap.Counters.ItemsFound,
		"items_downloaded": snap.Counters.ItemsDownloaded,
		"failed_count":     snap.Counters.FailedCount,
		"last_error":       snap.LastError,
		"finished_at":      e.clock.Now().Format(time.RFC3339),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.publisher.Publish(ctx, e.cfg.CompletionTopic, payload); err != nil {
		e.logger.Warn("publish completion event failed", zap.String("job_id", snap.ID), zap.Error(err))
	}
}

// sleepCtx waits d or until ctx is done; it reports whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
