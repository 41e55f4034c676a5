package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/shared"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaSQL string

// Connect opens the draft database with the default pool configuration
func Connect(dbURL string) (*sql.DB, error) {
	config := shared.NewDefaultUnifiedConfiguration().Database
	config.URL = dbURL
	return ConnectWithConfig(config)
}

// ConnectWithConfig opens the draft database and verifies it answers within the ping timeout
func ConnectWithConfig(config shared.DatabaseConfig) (*sql.DB, error) {
	if strings.TrimSpace(config.URL) == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pingTimeout := config.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"max_open_conns":     config.MaxOpenConns,
		"max_idle_conns":     config.MaxIdleConns,
		"conn_max_lifetime":  config.ConnMaxLifetime,
		"conn_max_idle_time": config.ConnMaxIdleTime,
	}).Info("Connected to draft database")

	return db, nil
}

// Close closes db if it is open
func Close(db *sql.DB) {
	if db != nil {
		db.Close()
		logrus.Info("Database connection closed")
	}
}

// HealthCheck pings db and logs the pool state
func HealthCheck(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database connection not established")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	stats := db.Stats()
	logrus.WithFields(logrus.Fields{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration,
	}).Debug("Database connection pool health check")

	return nil
}

// Migrate applies the embedded schema. Statements are idempotent, so a failing
// statement is logged and the rest still run; the first failure is returned.
func Migrate(ctx context.Context, db *sql.DB) error {
	var firstErr error
	for _, stmt := range parseSQLStatements(schemaSQL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logrus.WithError(err).Warn("Migration statement failed (continuing)")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("migration incomplete: %w", firstErr)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

// parseSQLStatements splits SQL content into statements, dropping comment-only lines
func parseSQLStatements(content string) []string {
	var statements []string
	var currentStatement strings.Builder

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentStatement.Len() > 0 {
			currentStatement.WriteString(" ")
		}
		currentStatement.WriteString(line)

		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSpace(strings.TrimSuffix(currentStatement.String(), ";"))
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStatement.Reset()
		}
	}

	if stmt := strings.TrimSpace(currentStatement.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

// requiredDraftColumns is the layout the draft store reads and writes
var requiredDraftColumns = map[string]string{
	"id":         "uuid",
	"category":   "character varying",
	"mode":       "character varying",
	"record_id":  "character varying",
	"payload":    "jsonb",
	"last_error": "text",
	"attempts":   "integer",
	"created_at": "timestamp with time zone",
	"updated_at": "timestamp with time zone",
	"expires_at": "timestamp with time zone",
}

// SchemaReport lists differences between the live draft table and the expected layout
type SchemaReport struct {
	TableExists     bool
	MissingColumns  []string
	MismatchedTypes []string
}

// Valid reports whether the table can be used as is
func (r SchemaReport) Valid() bool {
	return r.TableExists && len(r.MissingColumns) == 0 && len(r.MismatchedTypes) == 0
}

// ValidateSchema compares the ipo_drafts table with the layout the store expects
func ValidateSchema(ctx context.Context, db *sql.DB) (SchemaReport, error) {
	var report SchemaReport

	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, draftTable).Scan(&report.TableExists)
	if err != nil {
		return report, fmt.Errorf("failed to check %s table: %w", draftTable, err)
	}
	if !report.TableExists {
		return report, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1`, draftTable)
	if err != nil {
		return report, fmt.Errorf("failed to read %s columns: %w", draftTable, err)
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return report, err
		}
		columns[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return report, err
	}

	report.MissingColumns, report.MismatchedTypes = compareColumns(requiredDraftColumns, columns)
	return report, nil
}

func compareColumns(required, actual map[string]string) (missing, mismatched []string) {
	for name, expected := range required {
		got, ok := actual[name]
		switch {
		case !ok:
			missing = append(missing, name)
		case !strings.EqualFold(got, expected):
			mismatched = append(mismatched, fmt.Sprintf("%s: %s (expected %s)", name, got, expected))
		}
	}
	return missing, mismatched
}
