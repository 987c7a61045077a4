package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// UpdateFields lists the mutable columns; nil leaves a column untouched.
type UpdateFields struct {
	Description *string
	Price       *float64
	Stock       *int
}

func (f UpdateFields) Empty() bool {
	return f.Description == nil && f.Price == nil && f.Stock == nil
}

type Repository interface {
	Exists(ctx context.Context, db *gorm.DB, primaryCode string) (bool, error)
	FindByCode(ctx context.Context, db *gorm.DB, primaryCode string) (*Product, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]Product, error)
	FindUnsynced(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Product, error)
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	UpdateFields(ctx context.Context, db *gorm.DB, primaryCode string, fields UpdateFields, updatedAt time.Time) (*Product, error)
	ClaimForSync(ctx context.Context, db *gorm.DB, primaryCode string, now, until time.Time) (bool, error)
	ReleaseSyncClaim(ctx context.Context, db *gorm.DB, primaryCode string, unconfirmed bool) error
	SetExternalID(ctx context.Context, db *gorm.DB, primaryCode, externalID string) error
	Delete(ctx context.Context, db *gorm.DB, primaryCode string) (bool, error)
}
