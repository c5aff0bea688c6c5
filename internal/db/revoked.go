package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/rsclarke/aiconnect/internal/models"
)

// RevokeToken adds a token hash to the revocation list. It reports whether
// the hash was newly inserted.
func RevokeToken(ctx context.Context, d *sql.DB, tokenHash string, expiresAt int64) (bool, error) {
	result, err := d.ExecContext(ctx,
		"INSERT INTO revoked_tokens (token_hash, expires_at, revoked_at) VALUES (?, ?, ?) ON CONFLICT(token_hash) DO NOTHING",
		tokenHash, expiresAt, time.Now().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func IsTokenRevoked(ctx context.Context, d *sql.DB, tokenHash string) (bool, error) {
	var one int
	err := d.QueryRowContext(ctx, "SELECT 1 FROM revoked_tokens WHERE token_hash = ?", tokenHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func ListRevokedTokens(ctx context.Context, d *sql.DB) ([]models.RevokedToken, error) {
	rows, err := d.QueryContext(ctx,
		"SELECT id, token_hash, expires_at, revoked_at FROM revoked_tokens ORDER BY revoked_at DESC, id DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.RevokedToken
	for rows.Next() {
		var t models.RevokedToken
		if err := rows.Scan(&t.ID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// PruneRevokedTokens deletes entries whose token expired before cutoff.
func PruneRevokedTokens(ctx context.Context, d *sql.DB, cutoff int64) (int64, error) {
	result, err := d.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
