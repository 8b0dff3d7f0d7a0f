package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_PostgresPlaceholders(t *testing.T) {
	b := NewBuilder(DialectPostgres)
	b.Write("SELECT * FROM t WHERE a = ").Bind(1)
	b.Write(" AND b IN (").BindAll("x", "y").Write(")")

	query, args := b.Query()
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", query)
	assert.Equal(t, []any{1, "x", "y"}, args)
}

func TestBuilder_QuestionMarkPlaceholders(t *testing.T) {
	for _, dialect := range []Dialect{DialectSQLite, DialectMySQL} {
		b := NewBuilder(dialect)
		b.Write("DELETE FROM t WHERE uid = ").Bind("abc")

		query, args := b.Query()
		assert.Equal(t, "DELETE FROM t WHERE uid = ?", query)
		assert.Equal(t, []any{"abc"}, args)
	}
}

func TestBuilder_ArgCountMatchesPlaceholders(t *testing.T) {
	b := NewBuilder(DialectPostgres)
	values := []any{1, "two", 3.0, true}
	b.Write("INSERT INTO t VALUES (").BindAll(values...).Write(")")

	query, args := b.Query()
	assert.Len(t, args, len(values))
	assert.Contains(t, query, "$4")
	assert.NotContains(t, query, "$5")
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		uri     string
		dialect Dialect
		driver  string
		dsn     string
		wantErr bool
	}{
		{uri: "postgres://u:p@localhost/db", dialect: DialectPostgres, driver: "pgx", dsn: "postgres://u:p@localhost/db"},
		{uri: "postgresql://u:p@localhost/db", dialect: DialectPostgres, driver: "pgx", dsn: "postgresql://u:p@localhost/db"},
		{uri: "mysql://u:p@tcp(localhost:3306)/db", dialect: DialectMySQL, driver: "mysql", dsn: "u:p@tcp(localhost:3306)/db"},
		{uri: "sqlite:///tmp/cards.db", dialect: DialectSQLite, driver: "sqlite", dsn: "/tmp/cards.db"},
		{uri: "sqlite:cards.db", dialect: DialectSQLite, driver: "sqlite", dsn: "cards.db"},
		{uri: "/var/lib/cards.db", dialect: DialectSQLite, driver: "sqlite", dsn: "/var/lib/cards.db"},
		{uri: "http://registry:3000", wantErr: true},
		{uri: "https://registry.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			dialect, driver, dsn, err := DetectDialect(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}
