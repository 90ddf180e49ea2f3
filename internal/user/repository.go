// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	TouchSignIn(ctx context.Context, id string, at time.Time) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

const selectUser = `
		SELECT u.id, u.email, u.password_hash, p.name, p.role, u.token_version,
		       u.created_at, u.updated_at, p.last_sign_in_at, u.deleted_at
		FROM users u
		JOIN user_profiles p ON p.id = u.id`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Create inserts the identity row, then writes the profile the
// handle_new_user trigger seeded with the e-mail local part.
func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at, token_version`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
	)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	profileQuery := `
		INSERT INTO user_profiles (id, name, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, role = EXCLUDED.role`

	if _, err := r.db.ExecContext(ctx, profileQuery,
		user.ID,
		user.Name,
		user.Role,
		user.CreatedAt,
	); err != nil {
		return fmt.Errorf("backfill profile: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := selectUser + `
		WHERE u.id = $1 AND u.deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := selectUser + `
		WHERE u.email = $1 AND u.deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		WITH u AS (
			UPDATE users
			SET updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING id, updated_at
		)
		UPDATE user_profiles p
		SET name = $2, role = $3
		FROM u
		WHERE p.id = u.id
		RETURNING u.updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Name,
		user.Role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "increment token version", query, id)
}

func (r *repository) TouchSignIn(
	ctx context.Context,
	id string,
	at time.Time,
) error {
	query := `
		UPDATE user_profiles
		SET last_sign_in_at = $2
		WHERE id = $1`

	return r.execOne(ctx, "touch sign in", query, id, at)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET deleted_at = NOW(), updated_at = NOW(),
		    token_version = token_version + 1
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "delete user", query, id)
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "u.deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(u.email ILIKE $%d OR p.name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("p.role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM users u
		JOIN user_profiles p ON p.id = u.id
		WHERE %s`,
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d`,
		selectUser, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}
