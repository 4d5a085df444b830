// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS execution_receipts (
			id VARCHAR(36) PRIMARY KEY,
			protocol VARCHAR(50),
			chain_id BIGINT,
			action VARCHAR(20),
			token VARCHAR(20),
			amount_base NUMERIC(78, 0),
			status VARCHAR(30) NOT NULL,
			tx_hash VARCHAR(66),
			error TEXT,
			started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_execution_receipts_started ON execution_receipts(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_execution_receipts_status ON execution_receipts(status);
		CREATE INDEX IF NOT EXISTS idx_execution_receipts_protocol ON execution_receipts(protocol);

		CREATE TABLE IF NOT EXISTS yield_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			protocol VARCHAR(50) NOT NULL,
			chain_id BIGINT NOT NULL,
			token VARCHAR(20) NOT NULL,
			supply_apy DECIMAL(10, 4) NOT NULL,
			borrow_apy DECIMAL(10, 4) NOT NULL,
			utilization_rate DECIMAL(10, 4) NOT NULL,
			as_of TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_yield_snapshots_token_time ON yield_snapshots(token, as_of DESC);
		CREATE INDEX IF NOT EXISTS idx_yield_snapshots_protocol_chain ON yield_snapshots(protocol, chain_id, as_of DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
