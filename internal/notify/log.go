package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogNotifier writes ready events to the log. It is used when no broker
// is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyReady(ctx context.Context, orderRef, customerRef string) error {
	log.Info().
		Str("order_id", orderRef).
		Str("customer_id", customerRef).
		Msg("order ready")
	return nil
}
