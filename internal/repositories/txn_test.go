package repositories

import (
	"errors"
	"testing"
	"time"

	errs "paylock/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func deadlockErr() error {
	return &pgconn.PgError{Code: pgDeadlockDetected, Message: "deadlock detected"}
}

func TestRetry_DeadlockThenSuccess(t *testing.T) {
	var waits []time.Duration
	r := &runner{sleep: func(d time.Duration) { waits = append(waits, d) }}

	calls := 0
	err := r.retry(func() error {
		calls++
		if calls < 3 {
			return deadlockErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// Exponential backoff from the 10ms base.
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waits)
}

func TestRetry_ExhaustionWrapsOriginalError(t *testing.T) {
	var waits []time.Duration
	r := &runner{sleep: func(d time.Duration) { waits = append(waits, d) }}

	calls := 0
	err := r.retry(func() error {
		calls++
		return deadlockErr()
	})

	assert.Equal(t, maxTxAttempts, calls)
	assert.ErrorIs(t, err, errs.ErrDeadlockExhausted)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.Len(t, waits, maxTxAttempts-1)
}

func TestRetry_NonRetriableErrorPassesThrough(t *testing.T) {
	r := &runner{sleep: func(time.Duration) { t.Fatal("must not sleep on a non-retriable error") }}

	boom := errors.New("constraint violation")
	calls := 0
	err := r.retry(func() error {
		calls++
		return boom
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, errs.ErrDeadlockExhausted)
}

func TestRetry_SerializationFailureIsRetriable(t *testing.T) {
	r := &runner{sleep: func(time.Duration) {}}

	calls := 0
	err := r.retry(func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgSerializationFailure}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsRetriableTxError(t *testing.T) {
	assert.True(t, IsRetriableTxError(&pgconn.PgError{Code: pgDeadlockDetected}))
	assert.True(t, IsRetriableTxError(&pgconn.PgError{Code: pgSerializationFailure}))
	assert.False(t, IsRetriableTxError(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, IsRetriableTxError(errors.New("connection refused")))
	assert.False(t, IsRetriableTxError(nil))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.True(t, IsDuplicateKey(gorm.ErrDuplicatedKey))
	assert.False(t, IsDuplicateKey(&pgconn.PgError{Code: pgDeadlockDetected}))
	assert.False(t, IsDuplicateKey(errors.New("other")))
}
