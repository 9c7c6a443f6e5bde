package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// AccountService manages per-user account documents.
type AccountService struct {
	tx          TxRunner
	accounts    AccountRepositoryInterface
	signupBonus int64
}

// NewAccountService creates an AccountService that credits signupBonus
// points to every new account.
func NewAccountService(tx TxRunner, accounts AccountRepositoryInterface, signupBonus int64) *AccountService {
	return &AccountService{tx: tx, accounts: accounts, signupBonus: signupBonus}
}

// Ensure returns the caller's account, creating it with the signup bonus and
// default payment methods on first use.
func (s *AccountService) Ensure(ctx context.Context, userID, name string) (*model.Account, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	account, err := s.accounts.Get(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, transient("get account", err)
	}

	account = &model.Account{
		UserID:          userID,
		Name:            name,
		Points:          s.signupBonus,
		UnusedCouponIDs: []string{},
		UsedCouponIDs:   []string{},
		PaymentMethods:  model.DefaultPaymentMethods(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			// Created concurrently by another request.
			return s.accounts.Get(ctx, userID)
		}
		return nil, transient("create account", err)
	}

	log.Info().Str("user_id", userID).Int64("points", account.Points).Msg("account created")
	return account, nil
}

// RegisterPaymentMethod marks a payment method as registered, adding it if
// the account does not list it yet.
func (s *AccountService) RegisterPaymentMethod(ctx context.Context, userID, method string) (*model.Account, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if method == "" {
		return nil, ErrInvalidRequest
	}

	var account *model.Account
	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx database.TxQuerier) error {
		acc, err := s.accounts.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		found := false
		for i := range acc.PaymentMethods {
			if acc.PaymentMethods[i].Name == method {
				acc.PaymentMethods[i].Registered = true
				found = true
			}
		}
		if !found {
			acc.PaymentMethods = append(acc.PaymentMethods, model.PaymentMethod{Name: method, Registered: true})
		}

		if err := s.accounts.SetPaymentMethods(ctx, tx, userID, acc.PaymentMethods); err != nil {
			return fmt.Errorf("set payment methods: %w", err)
		}
		account = acc
		return nil
	})
	if err != nil {
		return nil, transient("register payment method", err)
	}
	return account, nil
}
