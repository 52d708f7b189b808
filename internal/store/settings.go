package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Setting keys used outside this package.
const (
	SettingGitToken     = "git_token"
	SettingGitRepoURL   = "git_repo_url"
	SettingGitBranch    = "git_branch"
	SettingGitCORSProxy = "git_cors_proxy"

	// PrefPrefix marks local preference keys mirrored to the vault.
	PrefPrefix = "pref."
)

// Setting returns the value stored under key. ok is false when unset.
func (db *DB) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key. An empty value deletes the key.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	if value == "" {
		if _, err := db.conn.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to clear setting %s: %w", key, err)
		}
		return nil
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// SettingsWithPrefix returns every setting whose key starts with prefix.
func (db *DB) SettingsWithPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
