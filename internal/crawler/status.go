package crawler

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// allowed transitions of the download status state machine. failed -> pending
// happens only through Requeue, never through Transition.
var allowedTransitions = map[DownloadStatus]map[DownloadStatus]bool{
	StatusPending:     {StatusDownloading: true},
	StatusDownloading: {StatusCompleted: true, StatusFailed: true},
}

// StatusTracker enforces and persists per-resource lifecycle transitions.
// Its mutex makes the read-validate-write sequence atomic with respect to
// other tracker callers; the Store provides the atomic record write.
type StatusTracker struct {
	mu     sync.Mutex
	store  Store
	clock  Clock
	logger *zap.Logger
}

// NewStatusTracker constructs a StatusTracker.
func NewStatusTracker(store Store, clock Clock, logger *zap.Logger) *StatusTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusTracker{store: store, clock: clock, logger: logger}
}

// Transition moves the resource to next, persisting status, timestamp, and
// (for completed) file metadata in a single store write. Invalid transitions
// return a StateError and leave stored state unchanged.
func (t *StatusTracker) Transition(ctx context.Context, id string, next DownloadStatus, errText string, file *FileInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, err := t.store.GetResource(ctx, id)
	if err != nil {
		return fmt.Errorf("load resource %s: %w", id, err)
	}
	if !allowedTransitions[cur.DownloadStatus][next] {
		return &StateError{ResourceID: id, From: cur.DownloadStatus, To: next}
	}
	switch next {
	case StatusCompleted:
		if file == nil || file.FilePath == "" || file.FileSize <= 0 {
			return fmt.Errorf("transition %s to completed: file metadata is required", id)
		}
		errText = ""
	case StatusFailed:
		if errText == "" {
			return fmt.Errorf("transition %s to failed: error message is required", id)
		}
		file = nil
	}
	if err := t.store.UpdateResourceStatus(ctx, id, next, errText, file, t.clock.Now()); err != nil {
		return fmt.Errorf("persist transition %s -> %s for %s: %w", cur.DownloadStatus, next, id, err)
	}
	t.logger.Debug("download status transition",
		zap.String("resource_id", id),
		zap.String("from", string(cur.DownloadStatus)),
		zap.String("to", string(next)),
	)
	return nil
}

// Requeue moves a failed resource back to pending and clears its error
// message. It is the only legal re-entry into the state machine.
func (t *StatusTracker) Requeue(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, err := t.store.GetResource(ctx, id)
	if err != nil {
		return fmt.Errorf("load resource %s: %w", id, err)
	}
	if cur.DownloadStatus != StatusFailed {
		return &StateError{ResourceID: id, From: cur.DownloadStatus, To: StatusPending}
	}
	if err := t.store.UpdateResourceStatus(ctx, id, StatusPending, "", nil, t.clock.Now()); err != nil {
		return fmt.Errorf("requeue resource %s: %w", id, err)
	}
	return nil
}
