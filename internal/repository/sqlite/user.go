package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, created_at, updated_at, active, name, email`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                  model.User
		createdAt, updated string
	)
	if err := row.Scan(&u.ID, &createdAt, &updated, &u.Active, &u.Name, &u.Email); err != nil {
		return nil, err
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user together with its password hash and salt.
// The email is lower-cased before it is stored; a duplicate is reported as
// apperror.ErrConflict by the unique index.
func (db *DB) CreateUser(ctx context.Context, user *model.User, hash, salt string) error {
	now := db.now()
	user.ID = uuid.NewString()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now.UTC()
	user.UpdatedAt = now.UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, created_at, updated_at, active, name, email, hash, salt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		formatTime(now),
		formatTime(now),
		user.Active,
		user.Name,
		user.Email,
		hash,
		salt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("User with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetCredentialsByEmail returns what the login path needs for email.
// Returns apperror.ErrNotFound when no account uses that address.
func (db *DB) GetCredentialsByEmail(ctx context.Context, email string) (*model.Credentials, error) {
	var c model.Credentials
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, hash, salt, active FROM users WHERE email = ?`,
		strings.ToLower(email),
	).Scan(&c.UserID, &c.Hash, &c.Salt, &c.Active)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting credentials: %w", err)
	}
	return &c, nil
}

// UpdateUser applies the provided fields of upd and bumps updated_at.
func (db *DB) UpdateUser(ctx context.Context, id string, upd repository.UserUpdate) (*model.User, error) {
	user, err := db.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var hash, salt string
	err = db.conn.QueryRowContext(ctx,
		`SELECT hash, salt FROM users WHERE id = ?`, id,
	).Scan(&hash, &salt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: reading credentials of user %s: %w", id, err)
	}

	if !upd.Apply(user, &hash, &salt) {
		return user, nil
	}

	now := db.now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, active = ?, hash = ?, salt = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Active,
		hash,
		salt,
		formatTime(now),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("user", id)
	}

	user.UpdatedAt = now.UTC()
	return user, nil
}

// SearchUsers lists users, oldest first, optionally filtered by a
// case-insensitive name substring and the active flag.
func (db *DB) SearchUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, error) {
	var (
		where []string
		args  []any
	)
	if filter.Name != nil {
		where = append(where, `casefold(name) LIKE casefold(?) ESCAPE '\'`)
		args = append(args, "%"+escapeLike(*filter.Name)+"%")
	}
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *filter.Active)
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC LIMIT ? OFFSET ?"
	args = append(args, sqlLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, max(filter.Limit, 0))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}
