package service

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/repuestos/internal/sequence/domain"
	"github.com/smallbiznis/repuestos/internal/sequence/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "seq.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Sequence{}))
	return db
}

func newGenerator(db *gorm.DB) *Generator {
	return NewNamed(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()}, domain.OEM)
}

func TestNextOnFreshSequence(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&domain.Sequence{Name: domain.OEM}).Error)
	gen := newGenerator(db)

	first, err := gen.Next(context.Background())
	require.NoError(t, err)
	second, err := gen.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "00000001", first)
	assert.Equal(t, "00000002", second)
}

func TestNextWithoutRow(t *testing.T) {
	db := setupDB(t)
	gen := newGenerator(db)

	_, err := gen.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrUninitialized)
}

func TestNextPastEightDigits(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&domain.Sequence{Name: domain.OEM, Value: 99999999}).Error)
	gen := newGenerator(db)

	code, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100000000", code)
}

func TestNextConcurrentCallersGetDistinctCodes(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&domain.Sequence{Name: domain.OEM}).Error)
	gen := newGenerator(db)

	const callers = 20
	codes := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], errs[i] = gen.Next(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Strings(codes)
	for i, code := range codes {
		assert.Equal(t, domain.FormatCode(int64(i+1)), code)
	}

	current, err := repository.Provide().Current(context.Background(), db, domain.OEM)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, int64(callers), current.Value)
}
