package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

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
		{name: "wrapped_cancel", err: fmt.Errorf("sweep: %w", context.Canceled), want: SchedulerJobReasonDeadlineExceeded},
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

func TestIsSchedulerErrorRetryable(t *testing.T) {
	assert.False(t, IsSchedulerErrorRetryable(nil))
	assert.True(t, IsSchedulerErrorRetryable(context.DeadlineExceeded))
	assert.True(t, IsSchedulerErrorRetryable(gorm.ErrInvalidTransaction))
	assert.False(t, IsSchedulerErrorRetryable(gorm.ErrRecordNotFound))
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewSchedulerMetricsForRegistry(registry, Config{ServiceName: "repuestos", Environment: "test"})

	metrics.AddBatchProcessed("ledger_resync", "products", 3)
	metrics.AddBatchProcessed("ledger_resync", "products", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("ledger_resync", "products"))
	assert.Equal(t, float64(3), got)
}

func TestNilSchedulerMetricsIsSafe(t *testing.T) {
	var metrics *SchedulerMetrics
	assert.NotPanics(t, func() {
		metrics.IncJobRun("ledger_resync")
		metrics.IncJobError("ledger_resync", errors.New("boom"))
		metrics.IncBatchDeferred("ledger_resync", SchedulerBatchDeferredReasonLockHeld)
		metrics.ObserveRunLoopLag(-1)
	})
}
