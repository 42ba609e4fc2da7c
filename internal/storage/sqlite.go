package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/internal/profile"
)

// SQLiteStorage implements Storage using SQLite. The full profile is kept as JSON;
// summary columns are denormalized for cheap result resolution.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		identity TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		current_role TEXT,
		company TEXT,
		data TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_updated_at ON profiles(updated_at);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertProfile inserts p or replaces the stored record with the same identity.
func (s *SQLiteStorage) UpsertProfile(ctx context.Context, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (identity, name, current_role, company, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   name = excluded.name,
		   current_role = excluded.current_role,
		   company = excluded.company,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		p.Identity, p.Name, p.CurrentRole, p.Company, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.Identity, err)
	}
	return nil
}

// GetProfile returns the full profile for identity.
func (s *SQLiteStorage) GetProfile(ctx context.Context, identity string) (*profile.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE identity = ?`, identity).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, identity)
	}
	if err != nil {
		return nil, err
	}
	var p profile.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile %s: %w", identity, err)
	}
	return &p, nil
}

// GetProfileSummary returns name, role and company for identity.
func (s *SQLiteStorage) GetProfileSummary(ctx context.Context, identity string) (*models.ProfileSummary, error) {
	var sum models.ProfileSummary
	var role, company sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT identity, name, current_role, company FROM profiles WHERE identity = ?`, identity,
	).Scan(&sum.Identity, &sum.Name, &role, &company)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, identity)
	}
	if err != nil {
		return nil, err
	}
	sum.CurrentRole = role.String
	sum.Company = company.String
	return &sum, nil
}

// DeleteProfile removes identity. Deleting an unknown identity returns ErrProfileNotFound.
func (s *SQLiteStorage) DeleteProfile(ctx context.Context, identity string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE identity = ?`, identity)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, identity)
	}
	return nil
}

// ListProfiles returns profiles ordered by identity. A limit <= 0 returns every profile.
func (s *SQLiteStorage) ListProfiles(ctx context.Context, offset, limit int) ([]*profile.Profile, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM profiles ORDER BY identity LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*profile.Profile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p profile.Profile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// CountProfiles returns the total number of profiles.
func (s *SQLiteStorage) CountProfiles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
