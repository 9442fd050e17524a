package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// RefreshRepo reads and writes the single current refresh token stored on
// each users row. It is the only writer of users.refresh_token.
type RefreshRepo struct {
	db *sqlx.DB
}

func NewRefreshRepo(db *sqlx.DB) *RefreshRepo {
	return &RefreshRepo{db: db}
}

// Set overwrites the stored token; nil clears it. Returns sql.ErrNoRows for an unknown user.
func (r *RefreshRepo) Set(ctx context.Context, userID string, token *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET refresh_token=$2, updated_at=NOW() WHERE id=$1`, userID, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Get returns the stored token, nil if none is set.
func (r *RefreshRepo) Get(ctx context.Context, userID string) (*string, error) {
	var tok sql.NullString
	if err := r.db.GetContext(ctx, &tok, `SELECT refresh_token FROM users WHERE id=$1`, userID); err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, nil
	}
	return &tok.String, nil
}

// Rotate replaces expected with next in a single conditional UPDATE. It
// reports false when the stored value no longer equals expected, which is
// how a concurrent rotation or a replayed token loses.
func (r *RefreshRepo) Rotate(ctx context.Context, userID, expected, next string) (bool, error) {
	const q = `UPDATE users SET refresh_token=$3, updated_at=NOW()
		WHERE id=$1 AND refresh_token IS NOT NULL AND refresh_token=$2`
	res, err := r.db.ExecContext(ctx, q, userID, expected, next)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
