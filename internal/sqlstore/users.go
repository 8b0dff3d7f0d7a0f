package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// User is a registry account row. The password hash is the argon2id
// salt-prefixed digest produced by cryptox.HashPassword.
type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// CreateUser inserts an account and returns its id.
func (s *Store) CreateUser(ctx context.Context, username string, passwordHash []byte) (int64, error) {
	b := NewBuilder(s.dialect)
	b.Write("INSERT INTO opsml_users (username, password_hash, created_at) VALUES (")
	b.BindAll(username, passwordHash, time.Now().UTC())
	b.Write(")")

	if s.dialect == DialectPostgres {
		b.Write(" RETURNING id")
		query, args := b.Query()
		var id int64
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, &common.SqlError{Op: "create user", Err: err}
		}
		return id, nil
	}

	query, args := b.Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &common.SqlError{Op: "create user", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &common.SqlError{Op: "create user", Err: err}
	}
	return id, nil
}

// GetUser fetches an account by username.
func (s *Store) GetUser(ctx context.Context, username string) (*User, error) {
	b := NewBuilder(s.dialect)
	b.Write("SELECT id, username, password_hash, created_at FROM opsml_users WHERE username = ").Bind(username)

	query, args := b.Query()
	var u User
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, &common.SqlError{Op: "get user", Err: err}
	}
	return &u, nil
}
