// Package domain contains core business types and interfaces.
//
// This file defines the Account domain type. It is the single shared mutable
// record of the system: every quota or tier change flows through the ledger
// and subscription services, never through direct field writes elsewhere.
package domain

import "time"

// Account is the per-user record keyed by the stable Telegram user ID.
//
// History lives only in process memory for the active chat session; the
// store strips it on writes, matching the transient pending-payment field.
type Account struct {
	TelegramID   int64
	CurrentModel Model
	Quota        QuotaSet
	Tier         Tier

	// ExpiryDate is meaningful only while Tier is paid; the zero value
	// stands in for "not applicable".
	ExpiryDate time.Time

	// LastFreeGrant is the calendar day the free daily allowance was last
	// granted. Drives the once-per-day reset.
	LastFreeGrant time.Time

	// PendingTier holds a tier between "invoice sent" and "payment
	// confirmed". Cleared exactly once by the matching payment.
	PendingTier Tier

	History []Message
}

// NewAccount creates an account with free-tier defaults, granted today.
func NewAccount(telegramID int64, now time.Time) *Account {
	return &Account{
		TelegramID:    telegramID,
		CurrentModel:  ModelChatMini,
		Quota:         FreeQuota(),
		Tier:          TierFree,
		LastFreeGrant: now,
	}
}

// Expired returns true if a paid subscription has run out.
func (a *Account) Expired(now time.Time) bool {
	return a.Tier.Paid() && !now.Before(a.ExpiryDate)
}

// SwitchModel selects a new model class and resets the chat session.
func (a *Account) SwitchModel(m Model) {
	a.CurrentModel = m
	a.History = nil
}

// ResetHistory starts a fresh chat session.
func (a *Account) ResetHistory() {
	a.History = nil
}

// SameDay reports whether two instants fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// AddMonth advances a date by one calendar month: December wraps to January
// of the next year, any other month increments with the day kept. A
// day-of-month past the end of the target month normalizes forward
// (Jan 31 -> Mar 2/3), which callers accept as-is.
func AddMonth(t time.Time) time.Time {
	t = t.UTC()
	year, month, day := t.Date()
	if month == time.December {
		year, month = year+1, time.January
	} else {
		month++
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
