package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Observation is the last state recorded for an order before the current one.
type Observation struct {
	Previous State
	Seen     bool
}

// Notifier is the outbound "your order is ready" collaborator.
type Notifier interface {
	NotifyReady(ctx context.Context, orderRef, customerRef string) error
}

// ShouldNotify reports whether moving from the observation to current is a
// genuine edge into Ready. Without a prior record the edge cannot be proven.
func ShouldNotify(obs Observation, current State) bool {
	return obs.Seen && obs.Previous != Ready && current == Ready
}

// DeliveryLease is how long a claimed notification is reserved for the
// process delivering it before a sweep may pick it up again.
const DeliveryLease = 30 * time.Second

// PendingNotification is a queued ready notification that has not been
// delivered yet. It is written in the same transaction as the transition
// into Ready, so the edge can never be lost once committed.
type PendingNotification struct {
	OrderRef    string
	CustomerRef string
	Attempts    int
}

// Outbox holds pending ready notifications.
type Outbox interface {
	// Claim leases up to limit due notifications for lease.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]PendingNotification, error)
	MarkSent(ctx context.Context, orderRef string) error
	// MarkFailed records the failure and schedules the next attempt.
	MarkFailed(ctx context.Context, orderRef string, retryAt time.Time, cause error) error
}

// Dispatcher delivers queued ready notifications until each one succeeds.
type Dispatcher struct {
	outbox     Outbox
	notifier   Notifier
	batch      int
	retryBase  time.Duration
	retryLimit time.Duration
	now        func() time.Time
}

// NewDispatcher creates a Dispatcher over the given outbox and notifier.
func NewDispatcher(outbox Outbox, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		outbox:     outbox,
		notifier:   notifier,
		batch:      50,
		retryBase:  time.Second,
		retryLimit: 5 * time.Minute,
		now:        time.Now,
	}
}

// Deliver sends one notification. On success it is marked sent; on failure
// it stays pending with a later retry time and the error is returned.
func (d *Dispatcher) Deliver(ctx context.Context, p PendingNotification) error {
	if err := d.notifier.NotifyReady(ctx, p.OrderRef, p.CustomerRef); err != nil {
		retryAt := d.now().Add(d.retryDelay(p.Attempts + 1))
		if markErr := d.outbox.MarkFailed(ctx, p.OrderRef, retryAt, err); markErr != nil {
			err = errors.Join(err, fmt.Errorf("record failed delivery: %w", markErr))
		}
		log.Warn().
			Err(err).
			Str("order_id", p.OrderRef).
			Int("attempt", p.Attempts+1).
			Time("retry_at", retryAt).
			Msg("ready notification failed")
		return err
	}

	// A failure here means the notification may be sent again; consumers
	// dedupe on the message id.
	if err := d.outbox.MarkSent(ctx, p.OrderRef); err != nil {
		return fmt.Errorf("mark %s sent: %w", p.OrderRef, err)
	}

	log.Info().
		Str("order_id", p.OrderRef).
		Str("customer_id", p.CustomerRef).
		Msg("ready notification sent")
	return nil
}

// Flush claims and delivers every due notification. It returns how many
// were delivered.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	sent := 0
	for {
		pending, err := d.outbox.Claim(ctx, d.batch, DeliveryLease)
		if err != nil {
			return sent, fmt.Errorf("claim ready notifications: %w", err)
		}
		for _, p := range pending {
			if err := d.Deliver(ctx, p); err == nil {
				sent++
			}
		}
		if len(pending) < d.batch {
			return sent, nil
		}
	}
}

// Run flushes the outbox every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.Flush(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("ready notification sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// retryDelay doubles per attempt up to retryLimit.
func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	delay := d.retryBase
	for i := 1; i < attempt && delay < d.retryLimit; i++ {
		delay *= 2
	}
	if delay > d.retryLimit {
		delay = d.retryLimit
	}
	return delay
}
