package handler

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/realtime"
)

// Subscriber opens order change subscriptions.
type Subscriber interface {
	Subscribe(f realtime.Filter) *realtime.Subscription
}

const defaultKeepAlive = 15 * time.Second

// streamOrders turns the response into a server-sent event stream: the
// initial snapshots first, then every change delivered to sub. With
// stopOnReady the stream ends once an order reaches READY. The subscription
// is cancelled when the stream ends, including when the client goes away.
func streamOrders(c *fiber.Ctx, sub *realtime.Subscription, initial []*model.Order, stopOnReady bool, keepAlive time.Duration) error {
	encode := c.App().Config().JSONEncoder

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// c must not be touched inside the writer; it is recycled once the
	// handler returns.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Cancel()

		send := func(event string, v any) bool {
			data, err := encode(v)
			if err != nil {
				return true
			}
			if _, err := w.WriteString("event: " + event + "\ndata: "); err != nil {
				return false
			}
			if _, err := w.Write(data); err != nil {
				return false
			}
			if _, err := w.WriteString("\n\n"); err != nil {
				return false
			}
			return w.Flush() == nil
		}

		for _, o := range initial {
			if !send("order", o) {
				return
			}
			if stopOnReady && o.State == lifecycle.Ready {
				return
			}
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if ev.Err != nil {
					if !send("error", fiber.Map{"order_id": ev.OrderID.String(), "error": "order state is corrupt"}) {
						return
					}
					continue
				}
				if !send("order", ev.Order) {
					return
				}
				if stopOnReady && ev.Order.State == lifecycle.Ready {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}
