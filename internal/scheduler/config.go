package scheduler

import (
	"time"

	"github.com/smallbiznis/repuestos/internal/config"
)

const (
	JobLedgerResync = "ledger_resync"

	ledgerResyncLockKey = "repuestos:ledger_resync"
)

// current reads the live sweep settings, falling back to defaults for any
// field a reload left unset.
func (s *Scheduler) current() config.SyncConfig {
	cfg := s.holder.Get()
	defaults := config.DefaultSyncConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return cfg
}

func (s *Scheduler) interval() time.Duration {
	return s.current().Interval
}
