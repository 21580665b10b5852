// Package service contains the business logic layer.
//
// This file implements the subscription state machine: tier selection ahead
// of an invoice, and the payment confirmation that actually moves an account
// between tiers. The expiry-triggered downgrade lives in Refresh.
package service

import (
	"context"
	"log/slog"

	"github.com/dkotenko/telegpt/internal/domain"
	"github.com/dkotenko/telegpt/internal/metrics"
)

// Subscriptions applies tier transitions to accounts.
type Subscriptions struct {
	accounts *Accounts
	logger   *slog.Logger
}

// NewSubscriptions creates the subscription service.
func NewSubscriptions(accounts *Accounts, logger *slog.Logger) *Subscriptions {
	return &Subscriptions{accounts: accounts, logger: logger}
}

// SelectTier records the tier a user picked before payment confirms. The
// account's tier does not change yet.
func (s *Subscriptions) SelectTier(ctx context.Context, telegramID int64, tier domain.Tier) error {
	const op = "subscription.select"

	if !tier.Paid() {
		return domain.Invalid(op, "tier is not purchasable")
	}

	_, err := s.accounts.Update(ctx, telegramID, func(a *domain.Account) error {
		a.PendingTier = tier
		return nil
	})
	return err
}

// PendingTier returns the tier currently awaiting payment, if any.
func (s *Subscriptions) PendingTier(ctx context.Context, telegramID int64) (domain.Tier, error) {
	acct, err := s.accounts.View(ctx, telegramID)
	if err != nil {
		return "", err
	}
	return acct.PendingTier, nil
}

// ConfirmPayment consumes a successful-payment event for the given tier.
//
// The payment must match the recorded pending selection; anything else is a
// data-consistency fault and is rejected without touching the account. On
// success the account moves to the tier with its full allowances, mini chat
// and transcription unlimited, and an expiry one calendar month out.
func (s *Subscriptions) ConfirmPayment(ctx context.Context, telegramID int64, tier domain.Tier) (*domain.Account, error) {
	const op = "subscription.confirm"

	acct, err := s.accounts.Update(ctx, telegramID, func(a *domain.Account) error {
		if a.PendingTier == "" || a.PendingTier != tier {
			s.logger.Error("payment does not match pending tier selection",
				"telegram_id", telegramID,
				"paid_tier", tier,
				"pending_tier", a.PendingTier,
			)
			metrics.PaymentMismatches.Inc()
			return domain.PaymentMismatch(op, tier, a.PendingTier)
		}

		a.Tier = tier
		a.Quota = domain.PaidQuota(tier)
		a.ExpiryDate = domain.AddMonth(s.accounts.now())
		a.PendingTier = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription activated",
		"telegram_id", telegramID,
		"tier", tier,
		"expires", acct.ExpiryDate,
	)
	metrics.PaymentsTotal.WithLabelValues(string(tier)).Inc()

	return acct, nil
}
