package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "other_pg", err: &pgconn.PgError{Code: "42P01"}, want: SchedulerJobReasonDB},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestSchedulerCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "homeaccess", Environment: "test"})

	m.IncJobRun("relay_access_events")
	m.AddBatchProcessed("relay_access_events", "access_events", 3)
	m.AddBatchProcessed("relay_access_events", "access_events", 0)
	m.IncJobError("relay_access_events", &pgconn.PgError{Code: "40001"})
	m.ObserveJobDuration("relay_access_events", 20*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("relay_access_events")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.batchProcessed.WithLabelValues("relay_access_events", "access_events")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("relay_access_events", SchedulerJobReasonSerializationFailure)))
}
