package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/repuestos/internal/product/domain"
	"github.com/smallbiznis/repuestos/pkg/db"
	"gorm.io/gorm"
)

// Generated codes are zero padded to a fixed width until they outgrow it,
// so ordering by length first keeps numeric order past that point.
const orderByInternalCode = "LENGTH(internal_code) ASC, internal_code ASC"

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Exists(ctx context.Context, conn *gorm.DB, primaryCode string) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).
		Model(&domain.Product{}).
		Where("primary_code = ?", primaryCode).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindByCode(ctx context.Context, conn *gorm.DB, primaryCode string) (*domain.Product, error) {
	var p domain.Product
	err := conn.WithContext(ctx).
		Where("primary_code = ?", primaryCode).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) FindAll(ctx context.Context, conn *gorm.DB) ([]domain.Product, error) {
	var items []domain.Product
	if err := conn.WithContext(ctx).Order(orderByInternalCode).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindUnsynced returns rows still missing a ledger id, skipping unconfirmed
// rows and rows under a live claim. Never attempted rows come first, then
// the least recently attempted, so a rejected row cannot starve the rest.
func (r *repo) FindUnsynced(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]domain.Product, error) {
	var items []domain.Product
	stmt := unsynced(conn.WithContext(ctx), now).
		Order("CASE WHEN ledger_attempted_at IS NULL THEN 0 ELSE 1 END ASC").
		Order("ledger_attempted_at ASC").
		Order(orderByInternalCode)
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ClaimForSync takes the row for one ledger create. It reports false when
// the row was synced, marked unconfirmed or claimed by someone else.
func (r *repo) ClaimForSync(ctx context.Context, conn *gorm.DB, primaryCode string, now, until time.Time) (bool, error) {
	res := unsynced(conn.WithContext(ctx).Model(&domain.Product{}), now).
		Where("primary_code = ?", primaryCode).
		UpdateColumns(map[string]any{
			"ledger_claimed_until": until.UTC(),
			"ledger_attempted_at":  now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ReleaseSyncClaim(ctx context.Context, conn *gorm.DB, primaryCode string, unconfirmed bool) error {
	return conn.WithContext(ctx).
		Model(&domain.Product{}).
		Where("primary_code = ?", primaryCode).
		UpdateColumns(map[string]any{
			"ledger_claimed_until": nil,
			"ledger_unconfirmed":   unconfirmed,
		}).Error
}

func unsynced(stmt *gorm.DB, now time.Time) *gorm.DB {
	return stmt.
		Where("external_id IS NULL").
		Where("ledger_unconfirmed = ?", false).
		Where("(ledger_claimed_until IS NULL OR ledger_claimed_until < ?)", now.UTC())
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	if err := conn.WithContext(ctx).Create(product).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *repo) UpdateFields(ctx context.Context, conn *gorm.DB, primaryCode string, fields domain.UpdateFields, updatedAt time.Time) (*domain.Product, error) {
	if !fields.Empty() {
		values := map[string]any{"updated_at": updatedAt}
		if fields.Description != nil {
			values["description"] = *fields.Description
		}
		if fields.Price != nil {
			values["price"] = *fields.Price
		}
		if fields.Stock != nil {
			values["stock"] = *fields.Stock
		}

		// RowsAffected is not trusted here: MySQL reports 0 for unchanged values.
		err := conn.WithContext(ctx).
			Model(&domain.Product{}).
			Where("primary_code = ?", primaryCode).
			UpdateColumns(values).Error
		if err != nil {
			return nil, err
		}
	}

	p, err := r.FindByCode(ctx, conn, primaryCode)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (r *repo) SetExternalID(ctx context.Context, conn *gorm.DB, primaryCode, externalID string) error {
	return conn.WithContext(ctx).
		Model(&domain.Product{}).
		Where("primary_code = ?", primaryCode).
		UpdateColumns(map[string]any{
			"external_id":          externalID,
			"ledger_claimed_until": nil,
		}).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, primaryCode string) (bool, error) {
	res := conn.WithContext(ctx).
		Where("primary_code = ?", primaryCode).
		Delete(&domain.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
