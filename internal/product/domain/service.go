package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	Get(ctx context.Context, primaryCode string) (*Response, error)
	Update(ctx context.Context, primaryCode string, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, primaryCode string) error
	ResyncPending(ctx context.Context, limit int) (SyncSummary, error)
}

type CreateRequest struct {
	PrimaryCode *string `json:"primary_code"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       *int    `json:"stock"`
}

// UpdateRequest is a partial update; omitted fields keep their value.
type UpdateRequest struct {
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
}

type Response struct {
	PrimaryCode  string    `json:"primary_code"`
	InternalCode string    `json:"internal_code"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	Stock        int       `json:"stock"`
	ExternalID   *string   `json:"external_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SyncSummary struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
}

// MaxPrimaryCodeLength matches the primary_code column width.
const MaxPrimaryCodeLength = 64

var (
	ErrNotFound           = errors.New("not_found")
	ErrDuplicateCode      = errors.New("duplicate_primary_code")
	ErrInvalidPrimaryCode = errors.New("invalid_primary_code")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidStock       = errors.New("invalid_stock")
)
