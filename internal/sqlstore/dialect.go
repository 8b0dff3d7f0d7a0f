// Package sqlstore persists card and artifact-key rows behind database/sql,
// with dialect-specific query generation for SQLite, Postgres, and MySQL.
package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DetectDialect resolves the tracking URI to a dialect, the database/sql
// driver name, and the DSN the driver expects.
func DetectDialect(trackingURI string) (Dialect, string, string, error) {
	switch {
	case strings.HasPrefix(trackingURI, "postgres://"),
		strings.HasPrefix(trackingURI, "postgresql://"):
		return DialectPostgres, "pgx", trackingURI, nil
	case strings.HasPrefix(trackingURI, "mysql://"):
		return DialectMySQL, "mysql", strings.TrimPrefix(trackingURI, "mysql://"), nil
	case strings.HasPrefix(trackingURI, "sqlite://"):
		return DialectSQLite, "sqlite", strings.TrimPrefix(trackingURI, "sqlite://"), nil
	case strings.HasPrefix(trackingURI, "sqlite:"):
		return DialectSQLite, "sqlite", strings.TrimPrefix(trackingURI, "sqlite:"), nil
	case strings.HasPrefix(trackingURI, "http://"), strings.HasPrefix(trackingURI, "https://"):
		return "", "", "", fmt.Errorf("tracking URI %q selects client mode, not a SQL dialect", trackingURI)
	default:
		// bare filesystem path
		return DialectSQLite, "sqlite", trackingURI, nil
	}
}

// gooseDialect maps a Dialect to the name goose knows it by.
func (d Dialect) gooseDialect() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return "sqlite3"
	}
}
