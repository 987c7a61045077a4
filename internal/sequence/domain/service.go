package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	// Increment bumps the counter and returns the new value. It must run inside tx.
	Increment(ctx context.Context, tx *gorm.DB, name string) (int64, error)
	Current(ctx context.Context, db *gorm.DB, name string) (*Sequence, error)
}

// Generator hands out unique, strictly increasing codes.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

var ErrUninitialized = errors.New("sequence_uninitialized")
