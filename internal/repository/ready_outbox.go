package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
)

// Claim leases up to limit due ready notifications. Claimed rows are pushed
// out by lease so concurrent sweeps skip them.
func (r *ObservationRepository) Claim(ctx context.Context, limit int, lease time.Duration) ([]lifecycle.PendingNotification, error) {
	query := `
		UPDATE ready_notifications n
		SET next_attempt_at = NOW() + make_interval(secs => $2)
		WHERE (n.date_key, n.seq) IN (
			SELECT date_key, seq FROM ready_notifications
			WHERE sent_at IS NULL AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING n.date_key, n.seq, n.customer_id, n.attempts`

	rows, err := r.pool.Query(ctx, query, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim ready notifications: %w", err)
	}
	defer rows.Close()

	var pending []lifecycle.PendingNotification
	for rows.Next() {
		var id model.OrderID
		var p lifecycle.PendingNotification
		if err := rows.Scan(&id.DateKey, &id.Sequence, &p.CustomerRef, &p.Attempts); err != nil {
			return nil, fmt.Errorf("scan ready notification: %w", err)
		}
		p.OrderRef = id.String()
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim ready notifications: %w", err)
	}
	return pending, nil
}

// MarkSent closes out a delivered notification.
func (r *ObservationRepository) MarkSent(ctx context.Context, orderRef string) error {
	id, err := model.ParseOrderID(orderRef)
	if err != nil {
		return err
	}

	query := `UPDATE ready_notifications SET sent_at = NOW(), last_error = ''
		WHERE date_key = $1 AND seq = $2 AND sent_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, id.DateKey, id.Sequence); err != nil {
		return fmt.Errorf("mark %s sent: %w", orderRef, err)
	}
	return nil
}

// MarkFailed records a failed attempt and when to try again.
func (r *ObservationRepository) MarkFailed(ctx context.Context, orderRef string, retryAt time.Time, cause error) error {
	id, err := model.ParseOrderID(orderRef)
	if err != nil {
		return err
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	query := `UPDATE ready_notifications
		SET attempts = attempts + 1, last_error = $3, next_attempt_at = $4
		WHERE date_key = $1 AND seq = $2 AND sent_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, id.DateKey, id.Sequence, reason, retryAt); err != nil {
		return fmt.Errorf("mark %s failed: %w", orderRef, err)
	}
	return nil
}
