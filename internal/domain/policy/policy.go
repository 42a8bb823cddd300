package policy

import (
	"fmt"
	"sort"
)

// Rule grants a refund percentage when the booking is cancelled at least
// HoursBefore hours ahead of the tour start.
type Rule struct {
	HoursBefore   float64 `json:"hours_before"`
	RefundPercent int     `json:"refund_percent"`
}

// CancellationPolicy is a named, ordered refund ladder. Rules are evaluated
// most-generous-threshold-first.
type CancellationPolicy struct {
	Name  string `json:"name"`
	Rules []Rule `json:"rules"`
}

// Named presets matching what tour operators usually offer.
var (
	Flexible = CancellationPolicy{
		Name: "flexible",
		Rules: []Rule{
			{HoursBefore: 24, RefundPercent: 100},
			{HoursBefore: 12, RefundPercent: 50},
			{HoursBefore: 0, RefundPercent: 0},
		},
	}
	Moderate = CancellationPolicy{
		Name: "moderate",
		Rules: []Rule{
			{HoursBefore: 72, RefundPercent: 100},
			{HoursBefore: 24, RefundPercent: 50},
			{HoursBefore: 0, RefundPercent: 0},
		},
	}
	Strict = CancellationPolicy{
		Name: "strict",
		Rules: []Rule{
			{HoursBefore: 168, RefundPercent: 100},
			{HoursBefore: 0, RefundPercent: 0},
		},
	}
)

// ByName returns a named preset policy.
func ByName(name string) (CancellationPolicy, bool) {
	switch name {
	case Flexible.Name:
		return Flexible, true
	case Moderate.Name:
		return Moderate, true
	case Strict.Name:
		return Strict, true
	}
	return CancellationPolicy{}, false
}

// WindowPolicy generates a three-rule policy from a single window parameter:
// full refund above the window, half above half the window, nothing below.
func WindowPolicy(windowHours float64) CancellationPolicy {
	return CancellationPolicy{
		Name: fmt.Sprintf("window_%gh", windowHours),
		Rules: []Rule{
			{HoursBefore: windowHours, RefundPercent: 100},
			{HoursBefore: windowHours / 2, RefundPercent: 50},
			{HoursBefore: 0, RefundPercent: 0},
		},
	}
}

// Normalized returns a copy with rules sorted by threshold descending, the
// order evaluation expects.
func (p CancellationPolicy) Normalized() CancellationPolicy {
	rules := make([]Rule, len(p.Rules))
	copy(rules, p.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].HoursBefore > rules[j].HoursBefore
	})
	return CancellationPolicy{Name: p.Name, Rules: rules}
}
