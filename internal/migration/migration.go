package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	productdomain "github.com/smallbiznis/repuestos/internal/product/domain"
	sequencedomain "github.com/smallbiznis/repuestos/internal/sequence/domain"
	"github.com/smallbiznis/repuestos/pkg/db"
	"gorm.io/gorm"
)

//go:embed sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunMigrations brings the schema up to date. Server databases replay the
// embedded SQL files; sqlite is created from the gorm models.
func RunMigrations(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if dbType == db.TypeSQLite {
		return conn.AutoMigrate(&productdomain.Product{}, &sequencedomain.Sequence{})
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return runSQLMigrations(sqlDB, dbType)
}

func runSQLMigrations(sqlDB *sql.DB, dbType string) error {
	sub, err := fs.Sub(embeddedMigrations, path.Join(migrationsDir, dbType))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := migrationDriver(sqlDB, dbType)
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

func migrationDriver(sqlDB *sql.DB, dbType string) (database.Driver, error) {
	switch dbType {
	case db.TypePostgres:
		return postgres.WithInstance(sqlDB, &postgres.Config{})
	case db.TypeMySQL:
		return mysql.WithInstance(sqlDB, &mysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported %s type", dbType)
	}
}
