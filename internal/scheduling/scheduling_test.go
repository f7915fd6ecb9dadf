package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerStartup(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler()
	require.NoError(t, err)
	require.Empty(t, scheduler.jobs, "Scheduler should have no registered jobs after creation")
}

func TestSchedulerUsage(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler()
	require.NoError(t, err)

	// Register the first job.
	firstJob := JobName("update_check")
	err = scheduler.RegisterJob(firstJob, 6*time.Hour, func(_ context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, scheduler.jobs, 1)
	require.Contains(t, scheduler.jobs, firstJob)

	// Register the second job.
	secondJob := JobName("leftover_cleanup")
	err = scheduler.RegisterJob(secondJob, 24*time.Hour, func(_ context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, scheduler.jobs, 2)
	require.Contains(t, scheduler.jobs, secondJob)

	// Update the first job.
	err = scheduler.RegisterJob(firstJob, time.Hour, func(_ context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, scheduler.jobs, 2)
	require.Contains(t, scheduler.jobs, firstJob)

	// Remove the second job.
	err = scheduler.Unregister(secondJob)
	require.NoError(t, err)
	require.Len(t, scheduler.jobs, 1)
	require.NotContains(t, scheduler.jobs, secondJob)
}

func TestIntervalValidation(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler()
	require.NoError(t, err)

	err = scheduler.RegisterJob(JobName("too_fast"), 30*time.Second, func(_ context.Context) error { return nil })
	require.ErrorIs(t, err, ErrInvalidInterval)
	require.Empty(t, scheduler.jobs)
}
