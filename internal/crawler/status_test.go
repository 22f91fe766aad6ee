package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedResource(t *testing.T, store *fakeStore, status DownloadStatus) ImageResource {
	t.Helper()
	res := ImageResource{
		ID:             "res-1",
		URL:            itemURL(1),
		DownloadStatus: status,
		CreatedAt:      time.Unix(500, 0).UTC(),
		UpdatedAt:      time.Unix(500, 0).UTC(),
	}
	require.NoError(t, store.CreateResource(context.Background(), res))
	return res
}

func TestStatusTracker_HappyPath(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	clk := &fakeClock{now: time.Unix(1000, 0).UTC()}
	tracker := NewStatusTracker(store, clk, zap.NewNop())
	res := seedResource(t, store, StatusPending)
	ctx := context.Background()

	require.NoError(t, tracker.Transition(ctx, res.ID, StatusDownloading, "", nil))

	file := &FileInfo{FilePath: "/blob/a.jpg", FileSize: 100, Width: 10, Height: 10, Format: "jpg"}
	require.NoError(t, tracker.Transition(ctx, res.ID, StatusCompleted, "", file))

	got, err := store.GetResource(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.DownloadStatus)
	require.Equal(t, "/blob/a.jpg", got.FilePath)
	require.Equal(t, int64(100), got.FileSize)
	require.Empty(t, got.ErrorMessage)
	require.Equal(t, clk.now, got.UpdatedAt)
}

func TestStatusTracker_FailurePath(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tracker := NewStatusTracker(store, &fakeClock{now: time.Unix(1000, 0).UTC()}, zap.NewNop())
	res := seedResource(t, store, StatusPending)
	ctx := context.Background()

	require.NoError(t, tracker.Transition(ctx, res.ID, StatusDownloading, "", nil))
	require.NoError(t, tracker.Transition(ctx, res.ID, StatusFailed, "download timed out", nil))

	got, err := store.GetResource(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.DownloadStatus)
	require.Equal(t, "download timed out", got.ErrorMessage)
}

func TestStatusTracker_RejectsInvalidTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		from DownloadStatus
		to   DownloadStatus
	}{
		{"pending to completed", StatusPending, StatusCompleted},
		{"pending to failed", StatusPending, StatusFailed},
		{"completed to downloading", StatusCompleted, StatusDownloading},
		{"failed to downloading", StatusFailed, StatusDownloading},
		{"failed to pending", StatusFailed, StatusPending},
		{"downloading to pending", StatusDownloading, StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			tracker := NewStatusTracker(store, &fakeClock{now: time.Unix(1000, 0).UTC()}, zap.NewNop())
			res := seedResource(t, store, tc.from)

			err := tracker.Transition(context.Background(), res.ID, tc.to, "boom", &FileInfo{FilePath: "/blob/a.jpg", FileSize: 1})
			var stateErr *StateError
			require.ErrorAs(t, err, &stateErr)
			require.Equal(t, tc.from, stateErr.From)
			require.Equal(t, tc.to, stateErr.To)

			// Stored state untouched.
			got, gerr := store.GetResource(context.Background(), res.ID)
			require.NoError(t, gerr)
			require.Equal(t, tc.from, got.DownloadStatus)
			require.Equal(t, time.Unix(500, 0).UTC(), got.UpdatedAt)
		})
	}
}

func TestStatusTracker_CompletedRequiresFileMetadata(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tracker := NewStatusTracker(store, &fakeClock{now: time.Unix(1000, 0).UTC()}, zap.NewNop())
	res := seedResource(t, store, StatusDownloading)
	ctx := context.Background()

	require.Error(t, tracker.Transition(ctx, res.ID, StatusCompleted, "", nil))
	require.Error(t, tracker.Transition(ctx, res.ID, StatusCompleted, "", &FileInfo{FilePath: "/blob/a.jpg"}))

	got, err := store.GetResource(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDownloading, got.DownloadStatus)
}

func TestStatusTracker_FailedRequiresMessage(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tracker := NewStatusTracker(store, &fakeClock{now: time.Unix(1000, 0).UTC()}, zap.NewNop())
	res := seedResource(t, store, StatusDownloading)

	require.Error(t, tracker.Transition(context.Background(), res.ID, StatusFailed, "", nil))
}

func TestStatusTracker_Requeue(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tracker := NewStatusTracker(store, &fakeClock{now: time.Unix(1000, 0).UTC()}, zap.NewNop())
	ctx := context.Background()

	res := seedResource(t, store, StatusDownloading)
	require.NoError(t, tracker.Transition(ctx, res.ID, StatusFailed, "boom", nil))
	require.NoError(t, tracker.Requeue(ctx, res.ID))

	got, err := store.GetResource(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.DownloadStatus)
	require.Empty(t, got.ErrorMessage)

	// Only failed resources can be requeued.
	var stateErr *StateError
	require.ErrorAs(t, tracker.Requeue(ctx, res.ID), &stateErr)
}

func TestStatusTracker_UnknownResource(t *testing.T) {
	t.Parallel()

	tracker := NewStatusTracker(newFakeStore(), &fakeClock{now: time.Unix(1000, 0).UTC()}, zap.NewNop())
	err := tracker.Transition(context.Background(), "missing", StatusDownloading, "", nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeduplicator_Exists(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dedup := NewDeduplicator(store)
	ctx := context.Background()

	exists, err := dedup.Exists(ctx, itemURL(1))
	require.NoError(t, err)
	require.False(t, exists)

	seedResource(t, store, StatusPending)
	exists, err = dedup.Exists(ctx, itemURL(1))
	require.NoError(t, err)
	require.True(t, exists)
}
