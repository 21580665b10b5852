// Package service contains the business logic layer.
//
// This file implements the quota ledger: the lazy date-driven refresh of
// quota and tier state, and the authorize-and-consume step run before any
// request is routed to a model.
package service

import (
	"time"

	"github.com/dkotenko/telegpt/internal/domain"
)

// Refresh recomputes quota and tier state from the wall clock. It is
// idempotent for a given calendar day and must run before any quota read.
//
// A paid subscription past its expiry downgrades to free-tier defaults in a
// single step; the downgrade counts as today's free grant. A free account
// gets the daily mini-chat allowance once per calendar day, with no
// back-filling for skipped days. An unexpired paid account is untouched.
func Refresh(a *domain.Account, now time.Time) {
	if a.Tier.Paid() {
		if !a.Expired(now) {
			return
		}
		a.Tier = domain.TierFree
		a.ExpiryDate = time.Time{}
		a.Quota = domain.FreeQuota()
		a.LastFreeGrant = now
		return
	}

	if !domain.SameDay(a.LastFreeGrant, now) {
		a.LastFreeGrant = now
		a.Quota.ChatMini = domain.FreeDailyChatMini
	}
}

// AuthorizeAndConsume authorizes one request against the counter for the
// model class, decrementing finite counters. Unlimited counters are never
// decremented and a finite counter never goes below zero.
//
// Callers must hold the account's lock (see Accounts.Update).
func AuthorizeAndConsume(a *domain.Account, m domain.Model) error {
	const op = "ledger.consume"

	if !m.Valid() {
		return domain.UnsupportedModel(op, m)
	}

	q := a.Quota.Get(m)
	if q.Exhausted() {
		return domain.QuotaExhausted(op, m)
	}

	a.Quota.Set(m, q.Consume())
	return nil
}
