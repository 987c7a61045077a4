package ratelimit

import (
	"github.com/smallbiznis/repuestos/internal/config"
	"golang.org/x/time/rate"
)

// NewLedgerLimiter bounds outbound ledger calls per process. A non-positive
// rate disables limiting.
func NewLedgerLimiter(cfg config.Config) *rate.Limiter {
	limit := cfg.Ledger.RateLimit
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Ledger.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}
