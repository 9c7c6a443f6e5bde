package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	notes     chan *pgconn.Notification
	execSQL   []string
	execErr   error
	discarded bool
	released  bool
}

func (f *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	return pgconn.NewCommandTag("LISTEN"), f.execErr
}

func (f *fakeConn) Discard(ctx context.Context) { f.discarded = true }

func (f *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n, ok := <-f.notes:
		if !ok {
			return nil, errors.New("conn closed")
		}
		return n, nil
	}
}

func (f *fakeConn) Release() { f.released = true }

type recordingPublisher struct {
	mu   sync.Mutex
	refs []string
	got  chan struct{}
}

func (r *recordingPublisher) Publish(ctx context.Context, orderRef string) {
	r.mu.Lock()
	r.refs = append(r.refs, orderRef)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func TestListener_ForwardsAndReconnects(t *testing.T) {
	first := &fakeConn{notes: make(chan *pgconn.Notification, 1)}
	second := &fakeConn{notes: make(chan *pgconn.Notification, 1)}
	conns := []*fakeConn{first, second}
	var mu sync.Mutex
	acquires := 0

	pub := &recordingPublisher{got: make(chan struct{}, 4)}
	l := newListener(func(ctx context.Context) (listenConn, error) {
		mu.Lock()
		defer mu.Unlock()
		if acquires == 0 {
			acquires++
			return nil, errors.New("connection refused")
		}
		c := conns[0]
		conns = conns[1:]
		acquires++
		return c, nil
	}, pub)
	l.minBackoff = time.Millisecond
	l.maxBackoff = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	first.notes <- &pgconn.Notification{Channel: ChangeChannel, Payload: "250101-0"}
	<-pub.got
	close(first.notes)

	second.notes <- &pgconn.Notification{Channel: ChangeChannel, Payload: "250101-1"}
	<-pub.got

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}

	assert.Equal(t, []string{"250101-0", "250101-1"}, pub.refs)
	// Both connections are unsubscribed before going back to the pool.
	assert.Equal(t, []string{`LISTEN "order_changes"`, "UNLISTEN *"}, first.execSQL)
	assert.Equal(t, []string{`LISTEN "order_changes"`, "UNLISTEN *"}, second.execSQL)
	assert.True(t, first.released)
	assert.True(t, second.released)
	assert.False(t, first.discarded)
	assert.False(t, second.discarded)
}

func TestListener_DiscardsConnectionThatCannotUnlisten(t *testing.T) {
	broken := &fakeConn{notes: make(chan *pgconn.Notification), execErr: errors.New("conn busy")}
	l := newListener(func(ctx context.Context) (listenConn, error) {
		return broken, nil
	}, &recordingPublisher{got: make(chan struct{}, 1)})

	err := l.listen(context.Background(), backoff.NewExponentialBackOff())

	require.Error(t, err)
	assert.Equal(t, []string{`LISTEN "order_changes"`, "UNLISTEN *"}, broken.execSQL)
	assert.True(t, broken.discarded)
	assert.True(t, broken.released)
}

func TestListener_StopsWhileBackingOff(t *testing.T) {
	l := newListener(func(ctx context.Context) (listenConn, error) {
		return nil, errors.New("connection refused")
	}, &recordingPublisher{got: make(chan struct{}, 1)})
	l.minBackoff = time.Hour
	l.maxBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.NoError(t, l.Run(ctx))
}
