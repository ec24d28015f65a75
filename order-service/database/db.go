package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// InitDB opens the Postgres connection that backs the saga journal and
// makes sure the journal tables exist.
func InitDB(dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := NewSagaJournal(db).InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create saga tables: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}
