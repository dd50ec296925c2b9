package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// NewDB opens a connection pool and waits for the database to accept
// connections. Postgres may come up after the service in a compose setup, so
// the initial ping is retried with a fixed backoff.
func NewDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var pingErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			break
		}
		slog.Warn("database not ready", "attempt", attempt, "error", pingErr)
		time.Sleep(connectBackoff)
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database after %d attempts: %w", connectAttempts, pingErr)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	return db, nil
}
