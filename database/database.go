// Package database is the SQLite persistence layer: the option store used by
// the access gate plus administrator accounts, sessions and login attempts.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"iplogin/logging"
	"iplogin/models"
	"iplogin/options"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type DB struct {
	conn *sql.DB
}

var _ options.Store = (*DB)(nil)

func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err = db.createTables(); err != nil {
		conn.Close()
		return nil, err
	}

	if err = db.checkAdmins(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS options (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			admin_id INTEGER NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS login_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ip TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			success BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_login_attempts_ip ON login_attempts(ip, timestamp)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (db *DB) checkAdmins() error {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM admins").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		logging.Warnf("No administrators configured; create one with `iplogin admin add`")
	}
	return nil
}

// Get returns def when the option has never been set.
func (db *DB) Get(name, def string) (string, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM options WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (db *DB) Set(name, value string) error {
	_, err := db.conn.Exec("INSERT OR REPLACE INTO options (name, value) VALUES (?, ?)", name, value)
	return err
}

func (db *DB) Delete(name string) error {
	_, err := db.conn.Exec("DELETE FROM options WHERE name = ?", name)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (db *DB) AddAdmin(email, password string) (*models.Admin, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := db.conn.Exec(
		"INSERT INTO admins (email, password_hash, created_at) VALUES (?, ?, ?)",
		email, string(hash), now,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, fmt.Errorf("admin %s: %w", email, ErrDuplicate)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Admin{ID: int(id), Email: email, PasswordHash: string(hash), CreatedAt: now}, nil
}

func (db *DB) UpdateAdminPassword(email, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res, err := db.conn.Exec("UPDATE admins SET password_hash = ? WHERE email = ?", string(hash), normalizeEmail(email))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetAdminByEmail(email string) (*models.Admin, error) {
	admin := &models.Admin{}
	err := db.conn.QueryRow(
		"SELECT id, email, password_hash, created_at FROM admins WHERE email = ?",
		normalizeEmail(email),
	).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return admin, nil
}

func (db *DB) ListAdmins() ([]models.Admin, error) {
	rows, err := db.conn.Query("SELECT id, email, password_hash, created_at FROM admins ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []models.Admin
	for rows.Next() {
		var a models.Admin
		if err := rows.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

func (db *DB) CreateSession(adminID int, ttl time.Duration) (*models.Session, error) {
	now := time.Now().UTC()
	s := &models.Session{
		Token:     uuid.NewString(),
		AdminID:   adminID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := db.conn.Exec(
		"INSERT INTO sessions (token, admin_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		s.Token, s.AdminID, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession returns ErrNotFound for unknown or expired tokens.
func (db *DB) GetSession(token string) (*models.Session, error) {
	s := &models.Session{}
	err := db.conn.QueryRow(
		`SELECT s.token, s.admin_id, a.email, s.created_at, s.expires_at
		FROM sessions s JOIN admins a ON a.id = s.admin_id
		WHERE s.token = ? AND s.expires_at > ?`,
		token, time.Now().UTC(),
	).Scan(&s.Token, &s.AdminID, &s.Email, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

func (db *DB) RecordLoginAttempt(ip string, success bool) error {
	_, err := db.conn.Exec(
		"INSERT INTO login_attempts (ip, timestamp, success) VALUES (?, ?, ?)",
		ip, time.Now().UTC(), success,
	)
	return err
}

func (db *DB) GetRecentFailedAttempts(ip string, duration time.Duration) (int, error) {
	var count int
	cutoff := time.Now().UTC().Add(-duration)
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM login_attempts WHERE ip = ? AND success = 0 AND timestamp > ?",
		ip, cutoff,
	).Scan(&count)
	return count, err
}

func (db *DB) CleanupExpiredSessions() error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC())
	return err
}

func (db *DB) CleanupOldLoginAttempts() error {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	_, err := db.conn.Exec("DELETE FROM login_attempts WHERE timestamp < ?", cutoff)
	return err
}
