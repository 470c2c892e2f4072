package sqlite

import (
	"context"
	"database/sql"

	"github.com/quorumhq/sessiond/internal/session/domain"
)

type usersRepo struct {
	db *sql.DB
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	version := u.CredentialVersion
	if version < 1 {
		version = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, credential_version, locked)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, version, u.Locked,
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, credential_version, locked, created_at, updated_at
		FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, credential_version, locked, created_at, updated_at
		FROM users WHERE email = ?`, email))
}

func (r *usersRepo) scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CredentialVersion, &u.Locked, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CredentialVersion(ctx context.Context, id string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `
		SELECT credential_version FROM users WHERE id = ?`, id).Scan(&version)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return version, nil
}

// UpdatePassword archives the current hash, installs the new one and bumps
// the credential version, all in one transaction.
func (r *usersRepo) UpdatePassword(ctx context.Context, id, newHash string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var currentHash string
	err = tx.QueryRowContext(ctx, `
		SELECT password_hash FROM users WHERE id = ?`, id).Scan(&currentHash)
	if err != nil {
		return 0, mapNotFound(err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO password_history (user_id, password_hash) VALUES (?, ?)`,
		id, currentHash,
	); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?,
		    credential_version = credential_version + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		newHash, id,
	); err != nil {
		return 0, err
	}

	var version int64
	err = tx.QueryRowContext(ctx, `
		SELECT credential_version FROM users WHERE id = ?`, id).Scan(&version)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *usersRepo) PasswordHistory(ctx context.Context, id string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT password_hash FROM password_history
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

func (r *usersRepo) SetLocked(ctx context.Context, id string, locked bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET locked = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		locked, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
