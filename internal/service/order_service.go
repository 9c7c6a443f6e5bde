package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// ReadyRecorder stores the observed state of an order inside the transition
// transaction and queues a ready notification when it is the edge into READY.
type ReadyRecorder interface {
	Record(ctx context.Context, tx database.TxQuerier, id model.OrderID, customerID string, current lifecycle.State) (bool, error)
}

// ReadyDeliverer sends a queued ready notification. A failed delivery stays
// queued for the background sweep.
type ReadyDeliverer interface {
	Deliver(ctx context.Context, p lifecycle.PendingNotification) error
}

// OrderFilter narrows a day's order list.
type OrderFilter struct {
	State  lifecycle.State // empty means all states
	Newest bool            // sort by creation time, newest first
}

// OrderService reads orders and drives staff lifecycle transitions.
type OrderService struct {
	tx        TxRunner
	orders    OrderRepositoryInterface
	recorder  ReadyRecorder
	deliverer ReadyDeliverer
	now       func() time.Time
}

// NewOrderService creates an OrderService.
func NewOrderService(tx TxRunner, orders OrderRepositoryInterface, recorder ReadyRecorder, deliverer ReadyDeliverer) *OrderService {
	return &OrderService{tx: tx, orders: orders, recorder: recorder, deliverer: deliverer, now: time.Now}
}

// Get returns any order. Used by staff views and the change feed.
func (s *OrderService) Get(ctx context.Context, id model.OrderID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, orderReadError("get order", err)
	}
	return order, nil
}

// GetForCustomer returns an order only if it belongs to userID.
func (s *OrderService) GetForCustomer(ctx context.Context, userID string, id model.OrderID) (*model.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListByDate returns a day's orders for the staff board.
func (s *OrderService) ListByDate(ctx context.Context, dateKey string, filter OrderFilter) ([]*model.Order, error) {
	if !model.ValidDateKey(dateKey) {
		return nil, fmt.Errorf("%w: date key %q", ErrInvalidRequest, dateKey)
	}
	orders, err := s.orders.ListByDate(ctx, dateKey)
	if err != nil {
		return nil, transient("list orders", err)
	}

	out := orders[:0]
	for _, o := range orders {
		if filter.State == "" || o.State == filter.State {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.Newest {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if filter.Newest {
			return a.ID.Sequence > b.ID.Sequence
		}
		return a.ID.Sequence < b.ID.Sequence
	})
	return out, nil
}

// ListByCustomer returns the caller's orders for a day.
func (s *OrderService) ListByCustomer(ctx context.Context, userID, dateKey string) ([]*model.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if !model.ValidDateKey(dateKey) {
		return nil, fmt.Errorf("%w: date key %q", ErrInvalidRequest, dateKey)
	}
	orders, err := s.orders.ListByCustomer(ctx, userID, dateKey)
	if err != nil {
		return nil, transient("list customer orders", err)
	}
	return orders, nil
}

// Advance moves an order one step forward. The row is locked, its current
// state derived from the stored flags, and the transition validated before
// the flags are written. The observation and any ready notification are
// committed with the flags; delivery is attempted after commit.
func (s *OrderService) Advance(ctx context.Context, id model.OrderID, to lifecycle.State) (*model.Order, error) {
	var order *model.Order
	var queued bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx database.TxQuerier) error {
		current, err := s.orders.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.Transition(current.State, to); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}

		now := s.now()
		if err := s.orders.UpdateState(ctx, tx, id, to, now); err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		current.State = to
		current.UpdatedAt = now

		queued, err = s.recorder.Record(ctx, tx, id, current.CustomerID, to)
		if err != nil {
			return fmt.Errorf("record observation: %w", err)
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, orderReadError("advance order", err)
	}

	log.Info().
		Str("order_id", id.String()).
		Str("state", to.String()).
		Msg("order state advanced")

	if queued {
		pending := lifecycle.PendingNotification{OrderRef: id.String(), CustomerRef: order.CustomerID}
		if err := s.deliverer.Deliver(ctx, pending); err != nil {
			log.Warn().
				Err(err).
				Str("order_id", id.String()).
				Msg("ready notification left queued for retry")
		}
	}
	return order, nil
}

// DailyStats summarizes a day's orders for the staff statistics view.
func (s *OrderService) DailyStats(ctx context.Context, dateKey string) (*model.DailyStats, error) {
	orders, err := s.ListByDate(ctx, dateKey, OrderFilter{})
	if err != nil {
		return nil, err
	}

	stats := &model.DailyStats{
		DateKey: dateKey,
		ByState: map[string]int64{
			lifecycle.Placed.String():     0,
			lifecycle.InProgress.String(): 0,
			lifecycle.Ready.String():      0,
		},
	}
	for _, o := range orders {
		stats.OrderCount++
		stats.ByState[o.State.String()]++
	}

	sales, err := s.orders.SalesTotal(ctx, dateKey)
	if err != nil {
		return nil, transient("sum sales", err)
	}
	stats.TotalSales = sales.String()
	return stats, nil
}

// orderReadError classifies errors from reading stored orders.
func orderReadError(op string, err error) error {
	if errors.Is(err, lifecycle.ErrInvalidFlags) {
		return fmt.Errorf("%w: %w", ErrCorruptOrder, err)
	}
	return transient(op, err)
}
