package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

type usersRepo struct {
	db dbtx
}

// Accounts with a NULL username or email are incomplete and must behave as if
// they don't exist, so both lookup queries filter them out at the SQL level.

func (r *usersRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, name, email, email_confirmed,
		       created_at, updated_at
		FROM users
		WHERE id = ? AND username IS NOT NULL AND email IS NOT NULL`, id)

	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, name, email, email_confirmed,
		       created_at, updated_at
		FROM users
		WHERE username = ? AND email IS NOT NULL`, username)

	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username).
		Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *usersRepo) Create(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, name, email,
		                   email_confirmed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, mapStringNull(u.Username), u.PasswordHash, u.Name,
		mapStringNull(u.Email), u.EmailConfirmed, u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	var username, email sql.NullString

	err := row.Scan(
		&u.ID, &username, &u.PasswordHash, &u.Name, &email,
		&u.EmailConfirmed, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Username = mapNullString(username)
	u.Email = mapNullString(email)
	return u, nil
}
