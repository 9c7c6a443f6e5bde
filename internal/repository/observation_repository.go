package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// ObservationRepository stores the last lifecycle state seen per order,
// which is what the ready notification edge is computed against.
type ObservationRepository struct {
	pool PoolInterface
}

// NewObservationRepository creates a new ObservationRepository with the given pool.
func NewObservationRepository(pool *pgxpool.Pool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// NewObservationRepositoryWithPool creates a new ObservationRepository with a custom pool interface.
// This is primarily used for testing.
func NewObservationRepositoryWithPool(pool PoolInterface) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// Seed records the initial state of a freshly placed order. An existing
// observation is left alone.
func (r *ObservationRepository) Seed(ctx context.Context, tx database.TxQuerier, id model.OrderID, state lifecycle.State) error {
	query := `INSERT INTO order_observations (date_key, seq, state) VALUES ($1, $2, $3)
		ON CONFLICT (date_key, seq) DO NOTHING`

	if _, err := tx.Exec(ctx, query, id.DateKey, id.Sequence, string(state)); err != nil {
		return fmt.Errorf("seed observation %s: %w", id, err)
	}
	return nil
}

// Record swaps in current for the order's observation and, when that is
// the edge into READY, queues a ready notification in the same transaction.
// The previous row is locked, so two writers of the same order are
// serialized and only one of them can see the edge. It reports whether a
// notification was queued.
func (r *ObservationRepository) Record(ctx context.Context, tx database.TxQuerier, id model.OrderID, customerID string, current lifecycle.State) (bool, error) {
	query := `
		WITH prev AS (
			SELECT state FROM order_observations WHERE date_key = $1 AND seq = $2 FOR UPDATE
		), upsert AS (
			INSERT INTO order_observations (date_key, seq, state, observed_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (date_key, seq) DO UPDATE
				SET state = EXCLUDED.state, observed_at = EXCLUDED.observed_at
		)
		SELECT state FROM prev`

	var obs lifecycle.Observation
	var raw string
	err := tx.QueryRow(ctx, query, id.DateKey, id.Sequence, string(current)).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("observe %s: %w", id, err)
	default:
		prev, err := lifecycle.ParseState(raw)
		if err != nil {
			return false, fmt.Errorf("observe %s: %w", id, err)
		}
		obs = lifecycle.Observation{Previous: prev, Seen: true}
	}

	if !lifecycle.ShouldNotify(obs, current) {
		return false, nil
	}

	// The caller delivers right after commit; the sweep only takes over once
	// that first attempt's lease has run out.
	enqueue := `INSERT INTO ready_notifications (date_key, seq, customer_id, next_attempt_at)
		VALUES ($1, $2, $3, NOW() + make_interval(secs => $4))
		ON CONFLICT (date_key, seq) DO NOTHING`

	tag, err := tx.Exec(ctx, enqueue, id.DateKey, id.Sequence, customerID, lifecycle.DeliveryLease.Seconds())
	if err != nil {
		return false, fmt.Errorf("queue ready notification %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
