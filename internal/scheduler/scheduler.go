package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/clock"
	notificationdomain "github.com/smallbiznis/homeaccess/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/homeaccess/internal/observability/metrics"
	"github.com/smallbiznis/homeaccess/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobRelayAccessEvents = "relay_access_events"

	relayLeaseName = "scheduler:relay_access_events"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log    *zap.Logger
	Relay  notificationdomain.Relay
	GenID  *snowflake.Node
	Clock  clock.Clock
	Locker *ratelimit.Locker `optional:"true"`
	Config Config            `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	relay   notificationdomain.Relay
	locker  *ratelimit.Locker
	metrics *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Relay == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		relay:   p.Relay,
		locker:  p.Locker,
		metrics: obsmetrics.Scheduler(),
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startRun(ctx, name)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil && run.failures == 0 {
		run.fail()
	}
	s.finishRun(ctx, run)
	if err == nil {
		return nil
	}

	// Deadlines are soft: the next tick picks up where this run stopped.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobRelayAccessEvents, s.isJobEnabled(JobRelayAccessEvents), func(ctx context.Context) error {
			return s.runJob(ctx, JobRelayAccessEvents, s.cfg.RelayTimeout, s.RelayAccessEventsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RelayAccessEventsJob drains pending access events to the notification service. With
// Redis configured only one replica relays at a time.
func (s *Scheduler) RelayAccessEventsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)

	if s.locker != nil {
		lease, err := s.locker.Acquire(ctx, relayLeaseName, s.cfg.LockTTL)
		if err != nil {
			s.logSchedulerError(ctx, run, "relay lease unavailable", JobRelayAccessEvents, err)
			return nil
		}
		if lease == nil {
			s.logger(ctx).Debug("relay lease held elsewhere", zap.String("job", JobRelayAccessEvents))
			return nil
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("release relay lease", zap.Error(err))
			}
		}()
	}

	published, err := s.relay.RelayPending(ctx)
	run.AddProcessed(published)
	s.metrics.AddBatchProcessed(JobRelayAccessEvents, "access_events", published)
	return err
}
