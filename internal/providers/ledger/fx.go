package ledger

import (
	"time"

	"github.com/smallbiznis/repuestos/internal/config"
	obsmetrics "github.com/smallbiznis/repuestos/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var Module = fx.Module("providers.ledger",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Limiter *rate.Limiter       `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewFromConfig(p Params) Provider {
	ledgerCfg := Config{
		BaseURL:      p.Config.Ledger.BaseURL,
		AccountEmail: p.Config.Ledger.AccountEmail,
		APIKey:       p.Config.Ledger.APIKey,
		Timeout:      time.Duration(p.Config.Ledger.TimeoutSeconds) * time.Second,
	}
	return New(ledgerCfg, nil, p.Limiter, p.Metrics, p.Log)
}
