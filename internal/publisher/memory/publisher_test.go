package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisher_RecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()

	id, err := p.Publish(ctx, "crawl-events", map[string]any{"job_id": "job-1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = p.Publish(ctx, "crawl-events", map[string]any{"job_id": "job-2"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "crawl-events", msgs[0].Topic)
	require.Equal(t, map[string]any{"job_id": "job-1"}, msgs[0].Payload)
}
