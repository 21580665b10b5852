// Package domain contains core business types and interfaces.
//
// This file defines quota types and the per-tier allowance tables.
package domain

import "strconv"

// Quota is a remaining request counter for one model class. It is either a
// non-negative count or the Unlimited sentinel; it never goes below zero.
type Quota int

// Unlimited marks a counter that is never decremented.
const Unlimited Quota = -1

// FreeDailyChatMini is the daily free-tier allowance for the mini chat model.
const FreeDailyChatMini Quota = 5

// Exhausted returns true if the counter is finite and used up.
func (q Quota) Exhausted() bool {
	return q != Unlimited && q <= 0
}

// Consume returns the counter after one authorized request.
func (q Quota) Consume() Quota {
	if q == Unlimited || q <= 0 {
		return q
	}
	return q - 1
}

// String renders the counter for user-facing account summaries.
func (q Quota) String() string {
	if q == Unlimited {
		return "Unlimited"
	}
	return strconv.Itoa(int(q))
}

// QuotaSet holds one counter per model class. A fixed struct rather than a
// map keyed by model name so the routing switch stays exhaustive.
type QuotaSet struct {
	ChatMini      Quota
	ChatFull      Quota
	Image         Quota
	Transcription Quota
}

// Get returns the counter for a model class.
func (s QuotaSet) Get(m Model) Quota {
	switch m {
	case ModelChatMini:
		return s.ChatMini
	case ModelChatFull:
		return s.ChatFull
	case ModelImage:
		return s.Image
	case ModelTranscription:
		return s.Transcription
	default:
		return 0
	}
}

// Set updates the counter for a model class.
func (s *QuotaSet) Set(m Model, q Quota) {
	switch m {
	case ModelChatMini:
		s.ChatMini = q
	case ModelChatFull:
		s.ChatFull = q
	case ModelImage:
		s.Image = q
	case ModelTranscription:
		s.Transcription = q
	}
}

// FreeQuota returns the counters a free-tier account holds after a daily
// grant. Only the mini chat model gets a free allowance.
func FreeQuota() QuotaSet {
	return QuotaSet{ChatMini: FreeDailyChatMini}
}

// Tier is the subscription level controlling allowances and expiry.
type Tier string

const (
	TierFree  Tier = "Free"
	TierLite  Tier = "Lite"
	TierSmart Tier = "Smart"
	TierPro   Tier = "Pro"
)

// PaidTiers lists the purchasable tiers in display order.
var PaidTiers = []Tier{TierLite, TierSmart, TierPro}

// Valid checks if the tier is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierLite, TierSmart, TierPro:
		return true
	default:
		return false
	}
}

// Paid returns true for any tier other than Free.
func (t Tier) Paid() bool {
	return t.Valid() && t != TierFree
}

// Allowance defines the monthly counters and invoice price for a paid tier.
// The mini chat and transcription models are unlimited on every paid tier.
type Allowance struct {
	ChatFull Quota
	Image    Quota
	PriceRUB int
}

// TierAllowances maps paid tiers to their allowances. The table can be
// overridden at startup from a tariffs file, see LoadTariffs.
var TierAllowances = map[Tier]Allowance{
	TierLite:  {ChatFull: 25, Image: 25, PriceRUB: 500},
	TierSmart: {ChatFull: 50, Image: 50, PriceRUB: 1000},
	TierPro:   {ChatFull: 100, Image: 50, PriceRUB: 1500},
}

// GetAllowance returns the allowance for a paid tier.
func GetAllowance(t Tier) (Allowance, bool) {
	a, ok := TierAllowances[t]
	return a, ok
}

// PaidQuota returns the counters granted by a paid tier.
func PaidQuota(t Tier) QuotaSet {
	a := TierAllowances[t]
	return QuotaSet{
		ChatMini:      Unlimited,
		ChatFull:      a.ChatFull,
		Image:         a.Image,
		Transcription: Unlimited,
	}
}
