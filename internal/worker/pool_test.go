package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEnqueuedJobs(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(db, &fakeCatalogue{tracks: playlistTracks(2)}, &fakeFetcher{})
	pool := NewPool(runner, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	job := createJob(t, db)
	require.True(t, pool.Enqueue(job.ID))

	require.Eventually(t, func() bool {
		var got struct{ Status string }
		db.Table("analysis_jobs").Select("status").Where("id = ?", job.ID).Scan(&got)
		return got.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPoolEnqueueFullQueue(t *testing.T) {
	// Never started, so nothing drains the queue
	pool := NewPool(&Runner{}, 1)
	for i := 0; i < jobQueueSize; i++ {
		require.True(t, pool.Enqueue(uuid.New()))
	}
	assert.False(t, pool.Enqueue(uuid.New()))
}

func TestPoolCancelUnknownJob(t *testing.T) {
	pool := NewPool(&Runner{}, 1)
	// Cancelling a job that isn't running is a no-op
	pool.Cancel(uuid.New())
}
