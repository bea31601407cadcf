package worker

import (
	"context"
	"log/slog"
	"time"

	"duel_webapp/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

const (
	DefaultInterval = time.Minute
	DefaultMaxIdle  = 30 * time.Minute
)

// Purger drops expired directory records. *session.Directory satisfies it.
type Purger interface {
	Purge(ctx context.Context) int
}

// Sweeper closes idle participant connections. *ws.Hub satisfies it.
type Sweeper interface {
	SweepIdle(maxIdle time.Duration) int
}

// Janitor runs the periodic housekeeping of one process.
type Janitor struct {
	sched    gocron.Scheduler
	purger   Purger
	sweeper  Sweeper
	interval time.Duration
	maxIdle  time.Duration
	log      *slog.Logger
}

func NewJanitor(purger Purger, sweeper Sweeper, interval, maxIdle time.Duration) (*Janitor, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Janitor{
		sched:    sched,
		purger:   purger,
		sweeper:  sweeper,
		interval: interval,
		maxIdle:  maxIdle,
		log:      logger.Component("janitor"),
	}, nil
}

// Start schedules the housekeeping job. A run that overlaps the previous
// one is skipped.
func (j *Janitor) Start() error {
	_, err := j.sched.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			defer cancel()
			j.RunOnce(ctx)
		}),
		gocron.WithName("janitor"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	j.sched.Start()
	j.log.Info("janitor started", "interval", j.interval, "max_idle", j.maxIdle)
	return nil
}

func (j *Janitor) Stop() error {
	return j.sched.Shutdown()
}

// RunOnce purges expired sessions and sweeps idle connections.
func (j *Janitor) RunOnce(ctx context.Context) (purged, swept int) {
	if j.purger != nil {
		purged = j.purger.Purge(ctx)
	}
	if j.sweeper != nil {
		swept = j.sweeper.SweepIdle(j.maxIdle)
	}
	if purged > 0 || swept > 0 {
		j.log.Info("housekeeping done", "purged", purged, "swept", swept)
	}
	return purged, swept
}
