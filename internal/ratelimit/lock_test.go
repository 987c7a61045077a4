package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchKeyOnly(expected, actual []interface{}) error {
	if len(expected) < 2 || len(actual) < 2 || expected[1] != actual[1] {
		return errors.New("key mismatch")
	}
	return nil
}

func TestWithLockRunsAndReleases(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewLocker(client)

	mock.CustomMatch(matchKeyOnly).ExpectSetNX("sweep", "token", time.Minute).SetVal(true)
	mock.CustomMatch(matchKeyOnly).ExpectEvalSha(redis.NewScript(lockReleaseScript).Hash(), []string{"sweep"}, "token").SetVal(int64(1))

	called := false
	err := locker.WithLock(context.Background(), "sweep", time.Minute, func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithLockHeldElsewhere(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewLocker(client)

	mock.CustomMatch(matchKeyOnly).ExpectSetNX("sweep", "token", time.Minute).SetVal(false)

	err := locker.WithLock(context.Background(), "sweep", time.Minute, func(context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})

	assert.ErrorIs(t, err, ErrLockHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilLockerRunsDirectly(t *testing.T) {
	var locker *Locker
	called := false

	err := locker.WithLock(context.Background(), "sweep", time.Minute, func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)

	_, _, err = locker.TryLock(context.Background(), "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
}

func TestTryLockValidatesInput(t *testing.T) {
	client, _ := redismock.NewClientMock()
	locker := NewLocker(client)

	_, _, err := locker.TryLock(context.Background(), "", time.Minute)
	assert.Error(t, err)
	_, _, err = locker.TryLock(context.Background(), "sweep", 0)
	assert.Error(t, err)
}
