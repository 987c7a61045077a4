package migration

import (
	"github.com/smallbiznis/repuestos/internal/config"
	"github.com/smallbiznis/repuestos/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply migrates the schema and seeds the code sequence.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if err := RunMigrations(conn, cfg.DBType); err != nil {
		return err
	}
	if err := seed.EnsureSequences(conn); err != nil {
		return err
	}
	if log != nil {
		log.Info("schema ready", zap.String("type", cfg.DBType))
	}
	return nil
}
