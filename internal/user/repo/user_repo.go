package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

// ErrDuplicate is returned when an insert or update hits the username/email unique indexes.
var ErrDuplicate = errors.New("duplicate username or email")

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url,
	password_hash, refresh_token, watch_history, created_at, updated_at`

// UserRepo provides data access for the users table using sqlx.
// Lookups return sql.ErrNoRows when nothing matches.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// Create inserts a new user row. u.ID must already be set.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash, watch_history)
		VALUES (:id, :username, :email, :full_name, :avatar_url, :cover_image_url, :password_hash, :watch_history)`
	if u.WatchHistory == nil {
		u.WatchHistory = entity.WatchHistory{}
	}
	if _, err := r.db.NamedExecContext(ctx, q, u); err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername fetches by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE username=$1`, username); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByUsernameOrEmail matches either identity key; empty arguments are ignored.
func (r *UserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE ($1 <> '' AND username=$1) OR ($2 <> '' AND email=$2)
		ORDER BY created_at LIMIT 1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, username, email); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, hash)
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

func (r *UserRepo) updateReturning(ctx context.Context, q string, args ...any) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q+` RETURNING `+userColumns, args...); err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &u, nil
}

// UpdateDetails sets full name and email.
func (r *UserRepo) UpdateDetails(ctx context.Context, id, fullName, email string) (*entity.User, error) {
	return r.updateReturning(ctx, `UPDATE users SET full_name=$2, email=$3, updated_at=NOW() WHERE id=$1`, id, fullName, email)
}

// UpdateAvatar sets the avatar URL.
func (r *UserRepo) UpdateAvatar(ctx context.Context, id, url string) (*entity.User, error) {
	return r.updateReturning(ctx, `UPDATE users SET avatar_url=$2, updated_at=NOW() WHERE id=$1`, id, url)
}

// UpdateCoverImage sets the cover image URL.
func (r *UserRepo) UpdateCoverImage(ctx context.Context, id, url string) (*entity.User, error) {
	return r.updateReturning(ctx, `UPDATE users SET cover_image_url=$2, updated_at=NOW() WHERE id=$1`, id, url)
}

// AppendWatchHistory moves videoID to the end of the user's history in one statement.
func (r *UserRepo) AppendWatchHistory(ctx context.Context, id, videoID string) (entity.WatchHistory, error) {
	const q = `UPDATE users SET
		watch_history = COALESCE(
			(SELECT jsonb_agg(v) FROM jsonb_array_elements(watch_history) v WHERE v <> to_jsonb($2::text)),
			'[]'::jsonb
		) || jsonb_build_array($2::text),
		updated_at = NOW()
	WHERE id=$1 RETURNING watch_history`
	var w entity.WatchHistory
	if err := r.db.QueryRowxContext(ctx, q, id, videoID).Scan(&w); err != nil {
		return nil, err
	}
	return w, nil
}
