package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/logger"
)

// ConnectMaria opens and verifies a connection pool to a tenant's
// MariaDB billing database.
//
// Parameters:
// - dsn: MySQL-format DSN of the billing database.
// - retries: number of additional ping attempts on failure.
//
// Returns:
// - *sql.DB: the verified connection pool.
//
// Notes:
// - The billing database is only read in short bursts per run, so the
//   pool is kept small and idle connections expire quickly.
func ConnectMaria(dsn string, retries int) (*sql.DB, error) {
	if dsn == "" {
		return nil, common.NewError(common.ErrCodeMariaConnect, "billing database DSN is empty", nil)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, common.NewError(common.ErrCodeMariaConnect, "failed to open billing database", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(time.Minute)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			logger.GetAppLogger().Info("Successfully connected to billing database")
			return db, nil
		}
		lastErr = err
		logger.GetAppLogger().WithError(err).Warnf("Billing database ping attempt %d failed", attempt+1)
	}

	_ = db.Close()
	return nil, common.NewError(common.ErrCodeMariaConnect, "failed to connect to billing database", lastErr)
}

// CloseMaria closes the billing database connection pool.
func CloseMaria(db *sql.DB) error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		logger.GetAppLogger().WithError(err).Error("Failed to close billing database pool")
		return err
	}
	return nil
}
