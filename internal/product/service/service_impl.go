package service

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/smallbiznis/repuestos/internal/clock"
	"github.com/smallbiznis/repuestos/internal/config"
	obsmetrics "github.com/smallbiznis/repuestos/internal/observability/metrics"
	"github.com/smallbiznis/repuestos/internal/product/domain"
	"github.com/smallbiznis/repuestos/internal/providers/ledger"
	sequencedomain "github.com/smallbiznis/repuestos/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Generator sequencedomain.Generator
	Ledger    ledger.Provider
	Clock     clock.Clock
	Metrics   *obsmetrics.Metrics `optional:"true"`
	Config    config.Config       `optional:"true"`
}

const (
	// ledgerQueueAllowance covers a create waiting on the ledger rate limiter.
	ledgerQueueAllowance = 20 * time.Second
	claimGrace           = time.Minute
	sweepTimeout         = 10 * time.Minute
)

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	generator sequencedomain.Generator
	ledger    ledger.Provider
	clock     clock.Clock
	metrics   *obsmetrics.Metrics

	// ledgerBudget bounds one ledger create. A claim outlives it by
	// claimGrace so a sweep never picks up a row whose create is in flight.
	ledgerBudget time.Duration
	claimTTL     time.Duration

	resync singleflight.Group
}

func New(p Params) domain.Service {
	budget := time.Duration(p.Config.Ledger.TimeoutSeconds) * time.Second
	if budget <= 0 {
		budget = ledger.DefaultTimeout
	}
	budget += ledgerQueueAllowance

	return &Service{
		db:           p.DB,
		log:          p.Log.Named("product.service"),
		repo:         p.Repo,
		generator:    p.Generator,
		ledger:       p.Ledger,
		clock:        p.Clock,
		metrics:      p.Metrics,
		ledgerBudget: budget,
		claimTTL:     budget + claimGrace,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.FindAll(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, primaryCode string) (*domain.Response, error) {
	item, err := s.repo.FindByCode(ctx, s.db, strings.TrimSpace(primaryCode))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(item)
	return &resp, nil
}

// Create stores the product locally and then offers it to the ledger. A
// supplied primary code is checked before the sequence is advanced, so a
// rejected duplicate never consumes a code.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.ErrInvalidDescription
	}
	if !validPrice(req.Price) {
		return nil, domain.ErrInvalidPrice
	}
	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
	}
	if stock < 0 {
		return nil, domain.ErrInvalidStock
	}

	primaryCode := ""
	if req.PrimaryCode != nil {
		primaryCode = strings.TrimSpace(*req.PrimaryCode)
	}
	if primaryCode != "" {
		if !validPrimaryCode(primaryCode) {
			return nil, domain.ErrInvalidPrimaryCode
		}
		exists, err := s.repo.Exists(ctx, s.db, primaryCode)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.ErrDuplicateCode
		}
	}

	internalCode, err := s.generator.Next(ctx)
	if err != nil {
		return nil, err
	}
	if primaryCode == "" {
		primaryCode = internalCode
	}

	now := s.clock.Now()
	attemptedAt := now.UTC()
	claimedUntil := attemptedAt.Add(s.claimTTL)
	p := &domain.Product{
		PrimaryCode:        primaryCode,
		InternalCode:       internalCode,
		Description:        description,
		Price:              req.Price,
		Stock:              stock,
		CreatedAt:          now,
		UpdatedAt:          now,
		LedgerClaimedUntil: &claimedUntil,
		LedgerAttemptedAt:  &attemptedAt,
	}
	if err := s.repo.Insert(ctx, s.db, p); err != nil {
		return nil, err
	}

	synced := s.pushCreate(ctx, p)
	s.metrics.RecordProductMutation(ctx, "create", synced)

	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, primaryCode string, req domain.UpdateRequest) (*domain.Response, error) {
	primaryCode = strings.TrimSpace(primaryCode)

	fields := domain.UpdateFields{Price: req.Price, Stock: req.Stock}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			return nil, domain.ErrInvalidDescription
		}
		fields.Description = &description
	}
	if fields.Price != nil && !validPrice(*fields.Price) {
		return nil, domain.ErrInvalidPrice
	}
	if fields.Stock != nil && *fields.Stock < 0 {
		return nil, domain.ErrInvalidStock
	}

	existing, err := s.repo.FindByCode(ctx, s.db, primaryCode)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}

	if _, err := s.repo.UpdateFields(ctx, s.db, primaryCode, fields, s.clock.Now()); err != nil {
		return nil, err
	}

	res := s.ledger.UpdateProduct(ctx, primaryCode, ledger.Patch{
		Label: fields.Description,
		Price: fields.Price,
		Stock: fields.Stock,
	})
	s.metrics.RecordProductMutation(ctx, "update", res.Delivered)

	current, err := s.repo.FindByCode(ctx, s.db, primaryCode)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(current)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, primaryCode string) error {
	deleted, err := s.repo.Delete(ctx, s.db, strings.TrimSpace(primaryCode))
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.metrics.RecordProductMutation(ctx, "delete", false)
	return nil
}

// ResyncPending offers up to limit products that still lack a ledger id to
// the ledger again, least recently attempted first. Concurrent sweeps with
// the same limit share one pass. The pass is detached from the caller, so a
// caller that gives up does not cut it short for the others.
func (s *Service) ResyncPending(ctx context.Context, limit int) (domain.SyncSummary, error) {
	if !s.ledger.Enabled() {
		return domain.SyncSummary{}, nil
	}

	ch := s.resync.DoChan("resync:"+strconv.Itoa(limit), func() (interface{}, error) {
		sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
		defer cancel()
		return s.resyncPending(sweepCtx, limit)
	})

	select {
	case <-ctx.Done():
		return domain.SyncSummary{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.log.Debug("ledger resync joined a running sweep", zap.Int("limit", limit))
		}
		summary, _ := res.Val.(domain.SyncSummary)
		return summary, res.Err
	}
}

func (s *Service) resyncPending(ctx context.Context, limit int) (domain.SyncSummary, error) {
	var summary domain.SyncSummary

	items, err := s.repo.FindUnsynced(ctx, s.db, s.clock.Now(), limit)
	if err != nil {
		return summary, err
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		now := s.clock.Now()
		claimed, err := s.repo.ClaimForSync(ctx, s.db, items[i].PrimaryCode, now, now.Add(s.claimTTL))
		if err != nil {
			return summary, err
		}
		if !claimed {
			continue
		}

		summary.Attempted++
		if s.pushCreate(ctx, &items[i]) {
			summary.Synced++
		}
	}

	if summary.Attempted > 0 {
		s.log.Info("ledger resync finished",
			zap.Int("attempted", summary.Attempted),
			zap.Int("synced", summary.Synced),
		)
	}
	return summary, nil
}

// pushCreate sends a claimed row to the ledger and reports whether the
// ledger id was stored on p. The claim is released whatever the outcome.
func (s *Service) pushCreate(ctx context.Context, p *domain.Product) bool {
	callCtx, cancel := context.WithTimeout(ctx, s.ledgerBudget)
	res := s.ledger.CreateProduct(callCtx, ledger.Item{
		Code:  p.PrimaryCode,
		Label: p.Description,
		Price: p.Price,
		Stock: p.Stock,
	})
	cancel()

	// Bookkeeping must land even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)

	if !res.Delivered {
		s.releaseClaim(ctx, p.PrimaryCode, false)
		return false
	}
	if res.ExternalID == "" {
		s.log.Warn("ledger accepted product without an id, excluded from resync",
			zap.String("primary_code", p.PrimaryCode),
		)
		s.releaseClaim(ctx, p.PrimaryCode, true)
		return false
	}

	if err := s.repo.SetExternalID(ctx, s.db, p.PrimaryCode, res.ExternalID); err != nil {
		s.log.Warn("storing ledger id failed",
			zap.String("primary_code", p.PrimaryCode),
			zap.String("external_id", res.ExternalID),
			zap.Error(err),
		)
		// The ledger has the product; resending it would create a second one.
		s.releaseClaim(ctx, p.PrimaryCode, true)
		return false
	}

	externalID := res.ExternalID
	p.ExternalID = &externalID
	p.LedgerClaimedUntil = nil
	return true
}

func (s *Service) releaseClaim(ctx context.Context, primaryCode string, unconfirmed bool) {
	if err := s.repo.ReleaseSyncClaim(ctx, s.db, primaryCode, unconfirmed); err != nil {
		s.log.Warn("releasing ledger claim failed",
			zap.String("primary_code", primaryCode),
			zap.Bool("unconfirmed", unconfirmed),
			zap.Error(err),
		)
	}
}

func validPrice(price float64) bool {
	return price > 0 && !math.IsInf(price, 0) && !math.IsNaN(price)
}

// Codes travel as a single URL path segment.
func validPrimaryCode(code string) bool {
	if len(code) > domain.MaxPrimaryCodeLength {
		return false
	}
	for _, r := range code {
		if r == '/' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func toResponse(p *domain.Product) domain.Response {
	return domain.Response{
		PrimaryCode:  p.PrimaryCode,
		InternalCode: p.InternalCode,
		Description:  p.Description,
		Price:        p.Price,
		Stock:        p.Stock,
		ExternalID:   p.ExternalID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
