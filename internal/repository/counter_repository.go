package repository

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// CounterRepository provides access to the per-day order counters.
type CounterRepository struct{}

// NewCounterRepository creates a new CounterRepository. Counters are only
// touched through the caller's transaction.
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{}
}

// Reserve returns the day's current next_sequence (0 for a new day) and
// stores next_sequence + 1. The upsert takes a row lock, so concurrent
// reservations for the same day queue behind each other until commit.
func (r *CounterRepository) Reserve(ctx context.Context, tx database.TxQuerier, dateKey string) (int64, error) {
	query := `
		INSERT INTO daily_counters (date_key, next_sequence) VALUES ($1, 1)
		ON CONFLICT (date_key) DO UPDATE SET next_sequence = daily_counters.next_sequence + 1
		RETURNING next_sequence - 1`

	var seq int64
	if err := tx.QueryRow(ctx, query, dateKey).Scan(&seq); err != nil {
		return 0, fmt.Errorf("reserve sequence for %s: %w", dateKey, err)
	}
	return seq, nil
}
