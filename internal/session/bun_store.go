package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/cinevault/auth-service/internal/database"
)

// BunStore persists refresh sessions in Postgres.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) Insert(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, maxPerUser int) error {
	rt := &database.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	_, err := s.db.NewInsert().
		Model(rt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert refresh session: %w", err)
	}

	// Trim oldest-first down to the bound. Last-writer-wins under concurrent
	// logins is acceptable; the set stays bounded either way.
	keep := s.db.NewSelect().
		Model((*database.RefreshToken)(nil)).
		Column("id").
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC, id DESC").
		Limit(maxPerUser)

	_, err = s.db.NewDelete().
		Model((*database.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("id NOT IN (?)", keep).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to trim refresh sessions: %w", err)
	}

	return nil
}

func (s *BunStore) Delete(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	_, err := s.db.NewDelete().
		Model((*database.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("token_hash = ?", tokenHash).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete refresh session: %w", err)
	}

	return nil
}

func (s *BunStore) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.NewDelete().
		Model((*database.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete refresh sessions: %w", err)
	}

	return nil
}

func (s *BunStore) DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) error {
	_, err := s.db.NewDelete().
		Model((*database.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune expired refresh sessions: %w", err)
	}

	return nil
}

func (s *BunStore) Exists(ctx context.Context, userID uuid.UUID, tokenHash string) (bool, error) {
	count, err := s.db.NewSelect().
		Model((*database.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("token_hash = ?", tokenHash).
		Where("expires_at > ?", time.Now()).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check refresh session: %w", err)
	}

	return count > 0, nil
}

func (s *BunStore) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.db.NewSelect().
		Model((*database.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("expires_at > ?", time.Now()).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count refresh sessions: %w", err)
	}

	return count, nil
}
