package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestController(search SearchClient, store *fakeStore, fetcher Fetcher) *Controller {
	engine := newTestEngine(search, store, fetcher, nil)
	clk := &fakeClock{now: time.Unix(1000, 0).UTC()}
	return NewController(engine, clk, &fakeIDs{}, ControllerConfig{DefaultConcurrency: 2}, zap.NewNop())
}

func TestController_StatusIdleBeforeFirstStart(t *testing.T) {
	t.Parallel()

	c := newTestController(&fakeSearch{}, newFakeStore(), &fakeFetcher{})
	require.Equal(t, JobStatusIdle, c.Status().Status)
}

func TestController_StopWithoutJobIsNoOp(t *testing.T) {
	t.Parallel()

	c := newTestController(&fakeSearch{}, newFakeStore(), &fakeFetcher{})
	c.Stop()
	require.Equal(t, JobStatusIdle, c.Status().Status)
}

func TestController_StartConflictsWhileRunning(t *testing.T) {
	t.Parallel()

	// Enough slow items to keep the first job busy.
	search := &fakeSearch{pages: manyPages(20, 5)}
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	c := newTestController(search, newFakeStore(), fetcher)

	handle, err := c.Start("cats", 2, 0)
	require.NoError(t, err)
	require.Equal(t, JobStatusRunning, c.Status().Status)

	_, err = c.Start("dogs", 2, 0)
	require.ErrorIs(t, err, ErrJobConflict)

	c.Stop()
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop in time")
	}
	require.Equal(t, JobStatusStopped, c.Status().Status)
}

func TestController_StopFinishesInFlightWork(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{pages: manyPages(50, 4)}
	fetcher := &fakeFetcher{delay: 5 * time.Millisecond}
	store := newFakeStore()
	c := newTestController(search, store, fetcher)

	handle, err := c.Start("cats", 2, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.Status().Counters.ItemsFound > 0
	}, time.Second, 2*time.Millisecond)

	c.Stop()
	status := c.Status().Status
	require.Contains(t, []JobStatus{JobStatusStopping, JobStatusStopped}, status)

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop in time")
	}

	final := c.Status()
	require.Equal(t, JobStatusStopped, final.Status)
	require.NotNil(t, final.Stopped)

	// Everything dispatched before the stop signal reached a terminal
	// state; nothing is left pending or downloading.
	for _, res := range store.all() {
		require.Contains(t, []DownloadStatus{StatusCompleted, StatusFailed}, res.DownloadStatus)
	}

	// The slot is free again.
	_, err = c.Start("dogs", 1, 1)
	require.NoError(t, err)
}

func TestController_RestartAfterCompletion(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{pages: manyPages(1, 2)}
	c := newTestController(search, newFakeStore(), &fakeFetcher{})

	first, err := c.Start("cats", 1, 0)
	require.NoError(t, err)
	<-first.Done()

	second, err := c.Start("cats", 1, 0)
	require.NoError(t, err)
	<-second.Done()

	final := c.Status()
	require.Equal(t, JobStatusStopped, final.Status)
	// Second run found the same items but downloaded nothing new.
	require.Equal(t, 2, final.Counters.ItemsFound)
	require.Zero(t, final.Counters.ItemsDownloaded)
}

func manyPages(pages, perPage int) [][]SearchItem {
	out := make([][]SearchItem, 0, pages)
	for p := 0; p < pages; p++ {
		out = append(out, pageItems(p*perPage+1, perPage))
	}
	return out
}
