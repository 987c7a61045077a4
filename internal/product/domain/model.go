package domain

import "time"

type Product struct {
	PrimaryCode  string    `gorm:"type:varchar(64);primaryKey"`
	InternalCode string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_products_internal_code"`
	Description  string    `gorm:"type:text;not null"`
	Price        float64   `gorm:"not null"`
	Stock        int       `gorm:"not null;default:0"`
	ExternalID   *string   `gorm:"type:varchar(128)"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`

	// LedgerClaimedUntil is set while a ledger create is in flight for the
	// row. Sweeps skip claimed rows until the claim lapses.
	LedgerClaimedUntil *time.Time
	LedgerAttemptedAt  *time.Time
	// LedgerUnconfirmed marks rows the ledger accepted without returning an
	// id. They are never offered again.
	LedgerUnconfirmed bool `gorm:"not null;default:false"`
}

func (Product) TableName() string { return "products" }
