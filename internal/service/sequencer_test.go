package service

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// counterStore is an in-memory store with optimistic concurrency control:
// a transaction that read a counter which changed before its commit fails
// with a serialization error, as PostgreSQL does under SERIALIZABLE.
type counterStore struct {
	mu      sync.Mutex
	next    map[string]int64
	version map[string]int64
	orders  map[model.OrderID]bool
	failAt  int64 // sequence whose first persist attempt fails, -1 for none
	failed  bool
}

func newCounterStore() *counterStore {
	return &counterStore{
		next:    make(map[string]int64),
		version: make(map[string]int64),
		orders:  make(map[model.OrderID]bool),
		failAt:  -1,
	}
}

func (s *counterStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return &counterTx{store: s, reads: map[string]int64{}, writes: map[string]int64{}}, nil
}

type counterTx struct {
	store  *counterStore
	reads  map[string]int64
	writes map[string]int64
	orders []model.OrderID
	done   bool
}

func (t *counterTx) reserve(dateKey string) int64 {
	t.store.mu.Lock()
	value := t.store.next[dateKey]
	t.reads[dateKey] = t.store.version[dateKey]
	t.store.mu.Unlock()

	runtime.Gosched()
	t.writes[dateKey] = value + 1
	return value
}

func (t *counterTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.done = true
	for key, v := range t.reads {
		if t.store.version[key] != v {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
	}
	for key, v := range t.writes {
		t.store.next[key] = v
		t.store.version[key]++
	}
	for _, id := range t.orders {
		t.store.orders[id] = true
	}
	return nil
}

func (t *counterTx) Rollback(ctx context.Context) error { t.done = true; return nil }

func (t *counterTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (t *counterTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *counterTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *counterTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *counterTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *counterTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *counterTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (t *counterTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

func (t *counterTx) Conn() *pgx.Conn { return nil }

func memCounterRepo() *mockCounterRepository {
	return &mockCounterRepository{
		reserveFn: func(ctx context.Context, tx database.TxQuerier, dateKey string) (int64, error) {
			return tx.(*counterTx).reserve(dateKey), nil
		},
	}
}

func persistToStore(store *counterStore) func(ctx context.Context, tx database.TxQuerier, id model.OrderID) error {
	return func(ctx context.Context, tx database.TxQuerier, id model.OrderID) error {
		store.mu.Lock()
		fail := id.Sequence == store.failAt && !store.failed
		if fail {
			store.failed = true
		}
		store.mu.Unlock()
		if fail {
			return errors.New("disk full")
		}
		ctr := tx.(*counterTx)
		ctr.orders = append(ctr.orders, id)
		return nil
	}
}

func TestOrderSequencer_ConcurrentCallersGetContiguousRange(t *testing.T) {
	store := newCounterStore()
	runner := database.NewTxRunner(store, database.RetryPolicy{
		MaxAttempts:     500,
		InitialInterval: 100 * time.Microsecond,
		MaxInterval:     2 * time.Millisecond,
	})
	seq := NewOrderSequencer(runner, memCounterRepo())

	const callers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	got := make([]int64, 0, callers)
	errs := make([]error, 0)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := seq.NextOrderID(context.Background(), "250101", persistToStore(store))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			got = append(got, id.Sequence)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := make([]int64, callers)
	for i := range want {
		want[i] = int64(i)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, int64(callers), store.next["250101"])
	assert.Len(t, store.orders, callers)
}

func TestOrderSequencer_StartsAtZeroPerDay(t *testing.T) {
	store := newCounterStore()
	seq := NewOrderSequencer(database.NewTxRunner(store, database.RetryPolicy{}), memCounterRepo())
	ctx := context.Background()

	a, err := seq.NextOrderID(ctx, "250101", persistToStore(store))
	require.NoError(t, err)
	b, err := seq.NextOrderID(ctx, "250101", persistToStore(store))
	require.NoError(t, err)
	c, err := seq.NextOrderID(ctx, "250102", persistToStore(store))
	require.NoError(t, err)

	assert.Equal(t, model.OrderID{DateKey: "250101", Sequence: 0}, a)
	assert.Equal(t, model.OrderID{DateKey: "250101", Sequence: 1}, b)
	assert.Equal(t, model.OrderID{DateKey: "250102", Sequence: 0}, c)
}

func TestOrderSequencer_FailedPersistLeavesNoGap(t *testing.T) {
	store := newCounterStore()
	store.failAt = 1
	seq := NewOrderSequencer(database.NewTxRunner(store, database.RetryPolicy{}), memCounterRepo())
	ctx := context.Background()

	_, err := seq.NextOrderID(ctx, "250101", persistToStore(store))
	require.NoError(t, err)

	_, err = seq.NextOrderID(ctx, "250101", persistToStore(store))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
	assert.Equal(t, int64(1), store.next["250101"], "counter unchanged by the failed order")

	id, err := seq.NextOrderID(ctx, "250101", persistToStore(store))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Sequence)
}

func TestOrderSequencer_RetryBudgetExhaustedIsTransient(t *testing.T) {
	runner := database.NewTxRunner(newCounterStore(), database.RetryPolicy{MaxAttempts: 2, InitialInterval: time.Microsecond, MaxInterval: time.Microsecond})
	counters := &mockCounterRepository{
		reserveFn: func(ctx context.Context, tx database.TxQuerier, dateKey string) (int64, error) {
			return 0, &pgconn.PgError{Code: "40001"}
		},
	}
	seq := NewOrderSequencer(runner, counters)

	_, err := seq.NextOrderID(context.Background(), "250101", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
	assert.True(t, errors.Is(err, database.ErrRetryBudgetExhausted))
}

func TestOrderSequencer_InvalidDateKey(t *testing.T) {
	seq := NewOrderSequencer(&mockRunner{}, &mockCounterRepository{})

	_, err := seq.NextOrderID(context.Background(), "2025-01-01", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}
