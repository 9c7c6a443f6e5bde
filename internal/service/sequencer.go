package service

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// TxRunner runs a function inside a retried transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx database.TxQuerier) error) error
}

// CounterRepositoryInterface defines the interface for daily counter access.
type CounterRepositoryInterface interface {
	// Reserve returns the current next sequence for dateKey (0 when the day
	// has no counter yet) and persists its increment.
	Reserve(ctx context.Context, tx database.TxQuerier, dateKey string) (int64, error)
}

// OrderSequencer issues gapless per-day order sequence numbers.
type OrderSequencer struct {
	tx       TxRunner
	counters CounterRepositoryInterface
}

// NewOrderSequencer creates an OrderSequencer.
func NewOrderSequencer(tx TxRunner, counters CounterRepositoryInterface) *OrderSequencer {
	return &OrderSequencer{tx: tx, counters: counters}
}

// Reserve takes the next sequence for dateKey inside the caller's transaction.
// The reservation only becomes durable when that transaction commits.
func (s *OrderSequencer) Reserve(ctx context.Context, tx database.TxQuerier, dateKey string) (model.OrderID, error) {
	if !model.ValidDateKey(dateKey) {
		return model.OrderID{}, fmt.Errorf("%w: date key %q", ErrInvalidRequest, dateKey)
	}
	seq, err := s.counters.Reserve(ctx, tx, dateKey)
	if err != nil {
		return model.OrderID{}, fmt.Errorf("reserve sequence: %w", err)
	}
	return model.OrderID{DateKey: dateKey, Sequence: seq}, nil
}

// NextOrderID reserves a sequence for dateKey and runs persist with it in the
// same transaction: either both the counter increment and persist's writes
// commit, or neither does. Conflicts are retried by the runner.
func (s *OrderSequencer) NextOrderID(ctx context.Context, dateKey string, persist func(ctx context.Context, tx database.TxQuerier, id model.OrderID) error) (model.OrderID, error) {
	var id model.OrderID
	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx database.TxQuerier) error {
		var err error
		id, err = s.Reserve(ctx, tx, dateKey)
		if err != nil {
			return err
		}
		if persist != nil {
			return persist(ctx, tx, id)
		}
		return nil
	})
	if err != nil {
		return model.OrderID{}, transient("next order id", err)
	}
	return id, nil
}
