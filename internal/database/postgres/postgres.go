package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"underwriting-service/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the service database, creating it on first run. A nil
// db is a valid outcome for callers: the persistence gateway falls back
// to its in-memory mirror per collection.
func Connect(cfg config.PostgresConfig) (*sqlx.DB, error) {
	defaultConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	defaultDB, err := sql.Open("postgres", defaultConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres db: %w", err)
	}
	defer defaultDB.Close()

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	if err := defaultDB.QueryRow(checkQuery, cfg.DBname).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		if _, err := defaultDB.Exec(fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.DBname)); err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", cfg.DBname, err)
		}
		slog.Info("Database created", "dbname", cfg.DBname)
	}

	targetConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBname)

	db, err := sqlx.Connect("postgres", targetConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping target database: %w", err)
	}

	if !exists {
		if err := executeSchema(db); err != nil {
			slog.Warn("Failed to execute schema.sql, continuing with gateway-managed tables", "error", err)
		}
	}

	return db, nil
}

// executeSchema applies schema.sql when the database was just created.
// Statement failures are logged and skipped so a partial schema does not
// block startup.
func executeSchema(db *sqlx.DB) error {
	locations := []string{"schema.sql", "/app/schema.sql"}

	var content []byte
	var err error
	for _, location := range locations {
		content, err = os.ReadFile(location)
		if err == nil {
			break
		}
	}
	if content == nil {
		return fmt.Errorf("schema.sql not found in %v", locations)
	}

	for _, statement := range strings.Split(string(content), ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" || strings.HasPrefix(statement, "--") {
			continue
		}
		if _, err := db.Exec(statement); err != nil {
			slog.Warn("Failed to execute schema statement", "error", err)
		}
	}
	return nil
}

// RetryConnect keeps attempting the connection in the background and
// hands the db back through onConnect once it succeeds.
func RetryConnect(wait time.Duration, cfg config.PostgresConfig, onConnect func(*sqlx.DB)) {
	for {
		db, err := Connect(cfg)
		if err == nil {
			slog.Info("Database retry connection succeeded")
			onConnect(db)
			return
		}
		slog.Warn("Failed to retry database connection", "error", err, "next_retry_in", wait)
		time.Sleep(wait)
	}
}
