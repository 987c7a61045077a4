package ledger

import (
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL      string
	AccountEmail string
	APIKey       string
	Timeout      time.Duration
}

// Complete reports whether every credential needed to reach the ledger is set.
func (c Config) Complete() bool {
	return strings.TrimSpace(c.BaseURL) != "" &&
		strings.TrimSpace(c.AccountEmail) != "" &&
		strings.TrimSpace(c.APIKey) != ""
}
