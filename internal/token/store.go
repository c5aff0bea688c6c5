package token

import (
	"context"
	"database/sql"

	"github.com/rsclarke/aiconnect/internal/db"
	"github.com/rsclarke/aiconnect/internal/models"
)

// SQLiteStore implements RevocationStore on the gateway database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given database connection.
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) Revoke(ctx context.Context, tokenHash string, expiresAt int64) error {
	_, err := db.RevokeToken(ctx, s.db, tokenHash, expiresAt)
	return err
}

func (s *SQLiteStore) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	return db.IsTokenRevoked(ctx, s.db, tokenHash)
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.RevokedToken, error) {
	return db.ListRevokedTokens(ctx, s.db)
}

func (s *SQLiteStore) Prune(ctx context.Context, cutoff int64) (int64, error) {
	return db.PruneRevokedTokens(ctx, s.db, cutoff)
}
