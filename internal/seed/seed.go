package seed

import (
	"context"
	"errors"

	sequencedomain "github.com/smallbiznis/repuestos/internal/sequence/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureSequences creates every counter the app needs at zero. Existing
// counters keep their value.
func EnsureSequences(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ensureSequenceTx(ctx, tx, sequencedomain.OEM)
	})
}

func ensureSequenceTx(ctx context.Context, tx *gorm.DB, name string) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sequencedomain.Sequence{Name: name, Value: 0}).Error
}
