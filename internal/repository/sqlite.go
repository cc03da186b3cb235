package repository

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Preference keys
const (
	PrefEventFilter          = "ceremony_event_filter"
	PrefCompetitionFilter    = "home_competition_filter"
	PrefNotificationsEnabled = "notifications_enabled"
)

// Repository stores client-local user data in SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS preferences (
			user_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS push_tokens (
			user_id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			synced BOOLEAN NOT NULL DEFAULT 0
		)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Preferences ====================

// GetPreference returns a stored preference value
func (r *Repository) GetPreference(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetPreference stores a preference value, replacing any previous one
func (r *Repository) SetPreference(ctx context.Context, userID, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, userID, key, value)
	return err
}

// ListPreferences returns every preference of a user
func (r *Repository) ListPreferences(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value FROM preferences WHERE user_id = ? ORDER BY key`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		prefs[key] = value
	}
	return prefs, rows.Err()
}

// ==================== Push Tokens ====================

// SavePushToken records the latest push token of a user as not yet synced
func (r *Repository) SavePushToken(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_tokens (user_id, token, updated_at, synced)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(user_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at, synced = 0
	`, userID, token, time.Now().UTC())
	return err
}

// MarkPushTokenSynced flags the token as accepted by the remote command.
// A token that has since been replaced is left untouched.
func (r *Repository) MarkPushTokenSynced(ctx context.Context, userID, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE push_tokens SET synced = 1 WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPushToken returns the recorded push token of a user
func (r *Repository) GetPushToken(ctx context.Context, userID string) (*PushToken, error) {
	var pt PushToken
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, token, updated_at, synced FROM push_tokens WHERE user_id = ?`, userID).
		Scan(&pt.UserID, &pt.Token, &pt.UpdatedAt, &pt.Synced)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

// DeleteUserData removes everything stored locally for a user
func (r *Repository) DeleteUserData(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM push_tokens WHERE user_id = ?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}
