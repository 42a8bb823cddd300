package policy

import (
	"fmt"
	"time"
)

// CancelledBy identifies which party initiated a cancellation.
type CancelledBy string

const (
	CancelledByCustomer CancelledBy = "customer"
	CancelledByProvider CancelledBy = "provider"
	CancelledByAdmin    CancelledBy = "admin"
)

// IsValid returns true for a recognized cancelling party.
func (c CancelledBy) IsValid() bool {
	switch c {
	case CancelledByCustomer, CancelledByProvider, CancelledByAdmin:
		return true
	}
	return false
}

// RefundCalculation is the outcome of evaluating a policy against a
// cancellation request. It is derived, never persisted as-is.
type RefundCalculation struct {
	CanCancel       bool    `json:"can_cancel"`
	IsRefundable    bool    `json:"is_refundable"`
	Percent         int     `json:"percent"`
	AmountCents     int64   `json:"amount_cents"`
	RuleDescription string  `json:"rule_description"`
	HoursUntilStart float64 `json:"hours_until_start"`
}

// Evaluate determines the refund due for cancelling a booking worth
// amountCents, startTime away, under the given policy.
//
// Provider-initiated cancellations are always refunded in full, regardless of
// policy or timing. This override is an intentional business rule protecting
// customers from provider-side cancellations; it must not be softened toward
// symmetry with customer cancellations.
func Evaluate(amountCents int64, startTime, now time.Time, p CancellationPolicy, by CancelledBy) RefundCalculation {
	hoursUntil := startTime.Sub(now).Hours()

	if hoursUntil <= 0 {
		return RefundCalculation{
			CanCancel:       false,
			IsRefundable:    false,
			Percent:         0,
			AmountCents:     0,
			RuleDescription: "tour has already started",
			HoursUntilStart: hoursUntil,
		}
	}

	if by == CancelledByProvider {
		return RefundCalculation{
			CanCancel:       true,
			IsRefundable:    amountCents > 0,
			Percent:         100,
			AmountCents:     amountCents,
			RuleDescription: "cancelled by provider: full refund",
			HoursUntilStart: hoursUntil,
		}
	}

	rule, ok := selectRule(p, hoursUntil)
	if !ok {
		// No rules at all: cancellation is allowed, nothing is refunded.
		return RefundCalculation{
			CanCancel:       true,
			IsRefundable:    false,
			Percent:         0,
			AmountCents:     0,
			RuleDescription: "no cancellation rules configured",
			HoursUntilStart: hoursUntil,
		}
	}

	amount := amountCents * int64(rule.RefundPercent) / 100
	return RefundCalculation{
		CanCancel:       true,
		IsRefundable:    rule.RefundPercent > 0 && amount > 0,
		Percent:         rule.RefundPercent,
		AmountCents:     amount,
		RuleDescription: describeRule(rule),
		HoursUntilStart: hoursUntil,
	}
}

// selectRule picks the rule with the largest threshold still satisfied by the
// time remaining. When no rule matches (gapped configuration), the least
// generous rule applies.
func selectRule(p CancellationPolicy, hoursUntil float64) (Rule, bool) {
	if len(p.Rules) == 0 {
		return Rule{}, false
	}
	normalized := p.Normalized()
	for _, rule := range normalized.Rules {
		if rule.HoursBefore <= hoursUntil {
			return rule, true
		}
	}
	return normalized.Rules[len(normalized.Rules)-1], true
}

func describeRule(r Rule) string {
	if r.RefundPercent == 0 {
		return fmt.Sprintf("no refund within %g hours of start", r.HoursBefore)
	}
	return fmt.Sprintf("%d%% refund when cancelled at least %g hours before start", r.RefundPercent, r.HoursBefore)
}
