package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/repuestos/internal/sequence/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Increment(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE sequences SET value = value + 1 WHERE name = ?`,
		name,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrUninitialized
	}

	var value int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT value FROM sequences WHERE name = ?`,
		name,
	).Scan(&value).Error; err != nil {
		return 0, err
	}
	return value, nil
}

func (r *repo) Current(ctx context.Context, db *gorm.DB, name string) (*domain.Sequence, error) {
	var seq domain.Sequence
	err := db.WithContext(ctx).Where("name = ?", name).First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seq, nil
}
