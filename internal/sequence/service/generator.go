package service

import (
	"context"

	obsmetrics "github.com/smallbiznis/repuestos/internal/observability/metrics"
	"github.com/smallbiznis/repuestos/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Generator struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	metrics *obsmetrics.Metrics
	name    string
}

func New(p Params) domain.Generator {
	return NewNamed(p, domain.OEM)
}

// NewNamed builds a generator over an arbitrary counter row.
func NewNamed(p Params, name string) *Generator {
	return &Generator{
		db:      p.DB,
		log:     p.Log.Named("sequence.generator"),
		repo:    p.Repo,
		metrics: p.Metrics,
		name:    name,
	}
}

// Next increments and reads the counter in one transaction. The row lock taken
// by the UPDATE serialises concurrent callers until commit.
func (g *Generator) Next(ctx context.Context) (string, error) {
	var value int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := g.repo.Increment(ctx, tx, g.name)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		g.log.Error("sequence increment failed", zap.String("sequence", g.name), zap.Error(err))
		return "", err
	}

	g.metrics.RecordSequenceIssued(ctx, g.name)
	return domain.FormatCode(value), nil
}
