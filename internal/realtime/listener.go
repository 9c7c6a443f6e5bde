package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ChangeChannel is the NOTIFY channel the orders trigger writes to.
const ChangeChannel = "order_changes"

// ChangePublisher receives order ids read from the change feed.
type ChangePublisher interface {
	Publish(ctx context.Context, orderRef string)
}

// listenConn is the part of a dedicated connection the listener needs.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	// Discard closes the connection so Release drops it from the pool.
	Discard(ctx context.Context)
	Release()
}

type poolConn struct {
	c *pgxpool.Conn
}

func (p poolConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.c.Exec(ctx, sql, args...)
}

func (p poolConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return p.c.Conn().WaitForNotification(ctx)
}

func (p poolConn) Discard(ctx context.Context) {
	_ = p.c.Conn().Close(ctx)
}

func (p poolConn) Release() {
	p.c.Release()
}

// Listener forwards Postgres change notifications to a ChangePublisher,
// reconnecting with exponential backoff when the connection drops.
type Listener struct {
	acquire    func(ctx context.Context) (listenConn, error)
	publisher  ChangePublisher
	channel    string
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewListener creates a Listener holding one connection from pool.
func NewListener(pool *pgxpool.Pool, publisher ChangePublisher) *Listener {
	return newListener(func(ctx context.Context) (listenConn, error) {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return poolConn{c: c}, nil
	}, publisher)
}

func newListener(acquire func(ctx context.Context) (listenConn, error), publisher ChangePublisher) *Listener {
	return &Listener{
		acquire:    acquire,
		publisher:  publisher,
		channel:    ChangeChannel,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled. It returns nil on cancellation.
func (l *Listener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.minBackoff
	b.MaxInterval = l.maxBackoff
	b.MaxElapsedTime = 0

	for {
		err := l.listen(ctx, b)
		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		log.Warn().Err(err).Dur("retry_in", wait).Msg("order change feed interrupted")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *Listener) listen(ctx context.Context, b backoff.BackOff) error {
	conn, err := l.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer l.release(conn)

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	b.Reset()
	log.Info().Str("channel", l.channel).Msg("order change feed listening")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.publisher.Publish(ctx, n.Payload)
	}
}

// release unsubscribes conn before handing it back, so a pooled connection
// never carries a LISTEN into another caller. A connection that cannot be
// reset is closed instead.
func (l *Listener) release(conn listenConn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		log.Debug().Err(err).Msg("discarding listen connection")
		conn.Discard(ctx)
	}
	conn.Release()
}
