package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nextreel/models"
)

// ErrUsernameTaken is returned when creating an account with a username that
// already exists.
var ErrUsernameTaken = errors.New("username already exists")

// CreateAccount inserts a new account row.
func (r *Repository) CreateAccount(a models.Account) error {
	_, err := r.db.Exec(
		`INSERT INTO accounts (id, username, email, password_hash, is_master, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Email, a.PasswordHash, boolToInt(a.IsMaster), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount fetches an account by id. The bool reports whether it exists.
func (r *Repository) GetAccount(id string) (models.Account, bool, error) {
	return r.scanAccount(r.db.QueryRow(
		`SELECT id, username, email, password_hash, is_master, created_at, updated_at
		 FROM accounts WHERE id = ?`, id))
}

// GetAccountByUsername fetches an account by username (case-insensitive).
func (r *Repository) GetAccountByUsername(username string) (models.Account, bool, error) {
	return r.scanAccount(r.db.QueryRow(
		`SELECT id, username, email, password_hash, is_master, created_at, updated_at
		 FROM accounts WHERE username = ? COLLATE NOCASE`, username))
}

// ListAccounts returns all accounts, master first then by creation time.
func (r *Repository) ListAccounts() ([]models.Account, error) {
	rows, err := r.db.Query(
		`SELECT id, username, email, password_hash, is_master, created_at, updated_at
		 FROM accounts ORDER BY is_master DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var isMaster int
		if err := rows.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &isMaster, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.IsMaster = isMaster != 0
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccountPassword replaces the stored password hash.
func (r *Repository) UpdateAccountPassword(id, passwordHash string) error {
	res, err := r.db.Exec(
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountAccounts returns the number of registered accounts.
func (r *Repository) CountAccounts() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

func (r *Repository) scanAccount(row *sql.Row) (models.Account, bool, error) {
	var a models.Account
	var isMaster int
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &isMaster, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, err
	}
	a.IsMaster = isMaster != 0
	return a, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
