package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, created_at, updated_at, active, name, email`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Active, &u.Name, &u.Email); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// CreateUser inserts a user with its credentials. A duplicate email is
// reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User, hash, salt string) error {
	now := db.now().UTC()
	user.ID = uuid.NewString()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, created_at, updated_at, active, name, email, hash, salt)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, now, now, user.Active, user.Name, user.Email, hash, salt,
	)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return apperror.Conflict("User with this email already exists")
		}
		return fmt.Errorf("postgres: inserting user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.NotFound("user", id)
	}

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetCredentialsByEmail(ctx context.Context, email string) (*model.Credentials, error) {
	var c model.Credentials
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, hash, salt, active FROM users WHERE email = $1`,
		strings.ToLower(email),
	).Scan(&c.UserID, &c.Hash, &c.Salt, &c.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("postgres: getting credentials: %w", err)
	}
	return &c, nil
}

// UpdateUser applies the provided fields of upd. Credentials are only
// rewritten when both hash and salt are provided.
func (db *DB) UpdateUser(ctx context.Context, id string, upd repository.UserUpdate) (*model.User, error) {
	user, err := db.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var hash, salt string
	if !upd.Apply(user, &hash, &salt) {
		return user, nil
	}

	now := db.now().UTC()
	var result sql.Result
	if upd.Hash.HasValue() && upd.Salt.HasValue() {
		result, err = db.conn.ExecContext(ctx,
			`UPDATE users SET name = $1, active = $2, hash = $3, salt = $4, updated_at = $5
			 WHERE id = $6`,
			user.Name, user.Active, hash, salt, now, id,
		)
	} else {
		result, err = db.conn.ExecContext(ctx,
			`UPDATE users SET name = $1, active = $2, updated_at = $3
			 WHERE id = $4`,
			user.Name, user.Active, now, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: updating user %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFound("user", id)
	}

	user.UpdatedAt = now
	return user, nil
}

// SearchUsers lists users oldest first, filtered by a case-insensitive name
// substring and the active flag.
func (db *DB) SearchUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, error) {
	var (
		p     placeholders
		where []string
	)
	if filter.Name != nil {
		where = append(where, `name ILIKE `+p.add("%"+escapeLike(*filter.Name)+"%")+` ESCAPE '\'`)
	}
	if filter.Active != nil {
		where = append(where, "active = "+p.add(*filter.Active))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + p.add(filter.Limit)
	}
	query += " OFFSET " + p.add(max(filter.Offset, 0))

	rows, err := db.conn.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, max(filter.Limit, 0))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating users: %w", err)
	}
	return users, nil
}
