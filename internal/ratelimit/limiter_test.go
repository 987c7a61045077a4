package ratelimit

import (
	"testing"

	"github.com/smallbiznis/repuestos/internal/config"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNewLedgerLimiter(t *testing.T) {
	limiter := NewLedgerLimiter(config.Config{Ledger: config.LedgerConfig{RateLimit: 2, RateBurst: 3}})
	assert.Equal(t, rate.Limit(2), limiter.Limit())
	assert.Equal(t, 3, limiter.Burst())

	unlimited := NewLedgerLimiter(config.Config{})
	assert.Equal(t, rate.Inf, unlimited.Limit())
}
