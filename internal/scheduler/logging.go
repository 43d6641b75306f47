package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/homeaccess/internal/observability/context"
	obslogger "github.com/smallbiznis/homeaccess/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/homeaccess/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tallies one execution of a job for its closing log line.
type jobRun struct {
	job       string
	id        string
	startedAt time.Time
	processed int
	failures  int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r != nil && count > 0 {
		r.processed += count
	}
}

func (r *jobRun) fail() {
	if r != nil {
		r.failures++
	}
}

func (r *jobRun) fields(now time.Time) []zap.Field {
	return []zap.Field{
		zap.String("job", r.job),
		zap.String("run_id", r.id),
		zap.Int64("duration_ms", now.Sub(r.startedAt).Milliseconds()),
		zap.Int("processed", r.processed),
		zap.Int("failures", r.failures),
	}
}

// startRun attaches a fresh run to ctx. Scheduler work is attributed to the system actor.
func (s *Scheduler) startRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	s.logger(ctx).Debug("scheduler.job.start", zap.String("job", job), zap.String("run_id", run.id))
	return ctx, run
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

// finishRun logs quietly when there was nothing to do.
func (s *Scheduler) finishRun(ctx context.Context, run *jobRun) {
	fields := run.fields(s.clock.Now())
	log := s.logger(ctx)
	switch {
	case run.failures > 0:
		log.Warn("scheduler.job.finish", fields...)
	case run.processed == 0:
		log.Debug("scheduler.job.finish", fields...)
	default:
		log.Info("scheduler.job.finish", fields...)
	}
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, job string, err error) {
	if err == nil {
		return
	}
	run.fail()
	s.logger(ctx).Error(msg,
		zap.String("job", job),
		zap.String("error_type", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	)
}
