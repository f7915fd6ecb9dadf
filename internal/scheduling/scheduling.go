// Package scheduling runs the periodic background jobs of the updater.
package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// JobName represents the name of a periodic job.
type JobName string

// Scheduler represents a background job scheduler.
type Scheduler struct {
	jobs      map[JobName]uuid.UUID
	scheduler gocron.Scheduler
}

// JobFunc represents the type of function that executes a scheduled job.
type JobFunc func(context.Context) error

// ErrInvalidInterval is returned when a job interval is too short to be useful.
var ErrInvalidInterval = errors.New("job interval must be at least one minute")

// NewScheduler creates a new Scheduler.
func NewScheduler() (Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return Scheduler{}, err
	}

	return Scheduler{
		jobs:      map[JobName]uuid.UUID{},
		scheduler: scheduler,
	}, nil
}

// RegisterJob registers a job running every given interval.
//
// If the job does not exist, it is created. If it already exists, it is
// updated. A job that is still running when its next tick comes up gets
// rescheduled instead of started a second time.
func (s *Scheduler) RegisterJob(name JobName, every time.Duration, jobFunc JobFunc) error {
	if every < time.Minute {
		return ErrInvalidInterval
	}

	id, ok := s.jobs[name]
	if ok {
		_, err := s.scheduler.Update(id,
			gocron.DurationJob(every),
			gocron.NewTask(wrapJob(name, jobFunc)),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
	} else {
		job, err := s.scheduler.NewJob(
			gocron.DurationJob(every),
			gocron.NewTask(wrapJob(name, jobFunc)),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}

		s.jobs[name] = job.ID()
	}

	return nil
}

// Unregister removes a job from the Scheduler, stopping future runs.
func (s *Scheduler) Unregister(name JobName) error {
	id, ok := s.jobs[name]
	if !ok {
		return nil
	}

	delete(s.jobs, name)

	return s.scheduler.RemoveJob(id)
}

// Start starts the scheduler and its registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown shuts down the scheduler and its registered jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func wrapJob(name JobName, jobFunc JobFunc) func(context.Context) {
	return func(ctx context.Context) {
		select {
		// If the context is already cancelled, don't start the job.
		case <-ctx.Done():
			return

		default:
			slog.InfoContext(ctx, "Executing periodic job", slog.String("job", string(name)))

			err := jobFunc(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Error running periodic job", slog.String("job", string(name)), slog.Any("error", err))
			}
		}
	}
}
