package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CreateCompany inserts a company scope with an already-sealed token.
func (db *DB) CreateCompany(c *Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO companies (id, name, cli_code, token_cipher, token_nonce, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.CliCode, c.TokenCipher, c.TokenNonce, c.CreatedAt)
	return err
}

// GetCompany returns a company by id, or nil if absent.
func (db *DB) GetCompany(id string) (*Company, error) {
	return db.scanCompany(db.QueryRow(`
		SELECT id, name, cli_code, token_cipher, token_nonce, created_at
		FROM companies WHERE id = ?`, id))
}

// ListCompanies returns all company scopes.
func (db *DB) ListCompanies() ([]Company, error) {
	rows, err := db.Query(`
		SELECT id, name, cli_code, token_cipher, token_nonce, created_at
		FROM companies ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CliCode, &c.TokenCipher, &c.TokenNonce, &c.CreatedAt); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (db *DB) scanCompany(row *sql.Row) (*Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.CliCode, &c.TokenCipher, &c.TokenNonce, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
