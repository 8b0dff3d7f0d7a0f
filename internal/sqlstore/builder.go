package sqlstore

import (
	"fmt"
	"strings"
)

// Builder assembles a parameterized query for one dialect. Placeholders are
// generated by the builder itself at the moment an argument is bound, so the
// placeholder and argument counts cannot diverge; values never end up inside
// the SQL text.
type Builder struct {
	dialect Dialect
	sql     strings.Builder
	args    []any
}

func NewBuilder(dialect Dialect) *Builder {
	return &Builder{dialect: dialect}
}

// Write appends a raw SQL fragment. The fragment must not contain
// placeholder characters; Bind is the only way to introduce one.
func (b *Builder) Write(fragment string) *Builder {
	b.sql.WriteString(fragment)
	return b
}

// Bind appends a placeholder in the dialect's syntax and records the value.
func (b *Builder) Bind(value any) *Builder {
	b.args = append(b.args, value)
	if b.dialect == DialectPostgres {
		fmt.Fprintf(&b.sql, "$%d", len(b.args))
	} else {
		b.sql.WriteByte('?')
	}
	return b
}

// BindAll appends a comma-separated placeholder list for the values.
func (b *Builder) BindAll(values ...any) *Builder {
	for i, v := range values {
		if i > 0 {
			b.sql.WriteString(", ")
		}
		b.Bind(v)
	}
	return b
}

// Query returns the assembled SQL and its arguments.
func (b *Builder) Query() (string, []any) {
	return b.sql.String(), b.args
}
