package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxTxAttempts bounds retries of serialization failures.
const maxTxAttempts = 5

// retryBaseDelay is the first backoff step between attempts.
const retryBaseDelay = 10 * time.Millisecond

// sqliteWriters holds one writer lock per SQLite pool.
var sqliteWriters sync.Map // map[*sql.DB]*sync.Mutex

// RunInTransaction runs fn inside a serializable transaction.
//
// PostgreSQL transactions use SERIALIZABLE isolation and are retried on serialization
// failures and deadlocks, so fn must not leak state between attempts. SQLite allows a
// single writer; transactions on the same pool are queued behind a process-wide lock.
// Calls must not be nested.
func RunInTransaction(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if IsSQLite(conn) {
		mu, errLock := sqliteWriter(conn)
		if errLock != nil {
			return errLock
		}
		mu.Lock()
		defer mu.Unlock()
		return conn.WithContext(ctx).Transaction(fn)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = conn.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err == nil || !IsSerializationFailure(err) {
			return err
		}
		log.WithError(err).WithField("attempt", attempt).Debug("db: retrying serializable transaction")

		timer := time.NewTimer(retryBaseDelay * time.Duration(1<<(attempt-1)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// sqliteWriter returns the writer lock for the pool behind conn.
func sqliteWriter(conn *gorm.DB) (*sync.Mutex, error) {
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	mu, _ := sqliteWriters.LoadOrStore(sqlDB, &sync.Mutex{})
	return mu.(*sync.Mutex), nil
}
