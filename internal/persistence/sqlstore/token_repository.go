package sqlstore

import (
	"context"

	"github.com/example/teammeeting/internal/persistence"
)

var _ persistence.TokenRepository = (*Storage)(nil)

type tokenRow struct {
	ID         string `db:"id"`
	UserID     int64  `db:"user_id"`
	SecretHash string `db:"secret_hash"`
	CreatedAt  int64  `db:"created_at"`
	LastUsedAt int64  `db:"last_used_at"`
}

// CreateToken stores a web service token.
func (s *Storage) CreateToken(ctx context.Context, token persistence.Token) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO ws_tokens (id, user_id, secret_hash, created_at, last_used_at)
		VALUES (:id, :user_id, :secret_hash, :created_at, :last_used_at)`,
		tokenRow(token))
	return s.mapper.MapError(err)
}

// GetToken loads a token by id.
func (s *Storage) GetToken(ctx context.Context, id string) (persistence.Token, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT id, user_id, secret_hash, created_at, last_used_at FROM ws_tokens WHERE id = ?`), id)
	if err != nil {
		return persistence.Token{}, s.mapper.MapError(err)
	}
	return persistence.Token(row), nil
}

// TouchToken records the last use of a token.
func (s *Storage) TouchToken(ctx context.Context, id string, usedAt int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE ws_tokens SET last_used_at = ? WHERE id = ?`), usedAt, id)
	if err != nil {
		return s.mapper.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
