package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

const accountColumns = `user_id, name, points, unused_coupon_ids, used_coupon_ids, payment_methods`

// AccountRepository provides access to per-user accounts using pgx.
type AccountRepository struct {
	pool PoolInterface
}

// NewAccountRepository creates a new AccountRepository with the given pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// NewAccountRepositoryWithPool creates a new AccountRepository with a custom pool interface.
// This is primarily used for testing.
func NewAccountRepositoryWithPool(pool PoolInterface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Get retrieves an account without locking.
// Returns service.ErrAccountNotFound if the account doesn't exist.
func (r *AccountRepository) Get(ctx context.Context, userID string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetForUpdate retrieves an account with a row lock held until the
// transaction ends.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, userID string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`

	account, err := scanAccount(tx.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return account, nil
}

// Create inserts a new account.
// Returns service.ErrAccountExists if the user already has one.
func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		account.UserID,
		account.Name,
		account.Points,
		nonNil(account.UnusedCouponIDs),
		nonNil(account.UsedCouponIDs),
		account.PaymentMethods,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Settle stores the post-order balance and moves the consumed coupons from
// the unused to the used set in one statement.
func (r *AccountRepository) Settle(ctx context.Context, tx database.TxQuerier, userID string, points int64, consumedCouponIDs []string) error {
	query := `
		UPDATE accounts SET
			points = $2,
			unused_coupon_ids = ARRAY(
				SELECT c FROM unnest(unused_coupon_ids) AS c WHERE NOT (c = ANY($3::text[]))
			),
			used_coupon_ids = used_coupon_ids || $3::text[]
		WHERE user_id = $1`

	tag, err := tx.Exec(ctx, query, userID, points, nonNil(consumedCouponIDs))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return service.ErrInsufficientPoints
		}
		return fmt.Errorf("settle account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAccountNotFound
	}
	return nil
}

// AddCoupon appends couponID to the account's unused set.
func (r *AccountRepository) AddCoupon(ctx context.Context, tx database.TxQuerier, userID, couponID string) error {
	query := `UPDATE accounts SET unused_coupon_ids = array_append(unused_coupon_ids, $2) WHERE user_id = $1`

	tag, err := tx.Exec(ctx, query, userID, couponID)
	if err != nil {
		return fmt.Errorf("add coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAccountNotFound
	}
	return nil
}

// SetPaymentMethods replaces the account's payment method list.
func (r *AccountRepository) SetPaymentMethods(ctx context.Context, tx database.TxQuerier, userID string, methods []model.PaymentMethod) error {
	query := `UPDATE accounts SET payment_methods = $2 WHERE user_id = $1`

	tag, err := tx.Exec(ctx, query, userID, methods)
	if err != nil {
		return fmt.Errorf("set payment methods: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.UserID,
		&a.Name,
		&a.Points,
		&a.UnusedCouponIDs,
		&a.UsedCouponIDs,
		&a.PaymentMethods,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// nonNil keeps NOT NULL array columns from receiving a SQL NULL.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
