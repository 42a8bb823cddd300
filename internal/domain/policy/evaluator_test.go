package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_FlexibleLadder(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		hoursAhead  float64
		wantPercent int
		wantAmount  int64
	}{
		{"well before the window", 30, 100, 10000},
		{"inside the half window", 18, 50, 5000},
		{"last minute", 2, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := now.Add(time.Duration(tt.hoursAhead * float64(time.Hour)))
			calc := Evaluate(10000, start, now, Flexible, CancelledByCustomer)

			assert.True(t, calc.CanCancel)
			assert.Equal(t, tt.wantPercent, calc.Percent)
			assert.Equal(t, tt.wantAmount, calc.AmountCents)
		})
	}
}

func TestEvaluate_MostGenerousRuleWins(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(200 * time.Hour)

	// 200h ahead satisfies every Strict rule; the 168h/100% one must win.
	calc := Evaluate(10000, start, now, Strict, CancelledByCustomer)
	assert.Equal(t, 100, calc.Percent)
}

func TestEvaluate_AfterStartCannotCancel(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-1 * time.Hour)

	calc := Evaluate(10000, start, now, Flexible, CancelledByCustomer)
	assert.False(t, calc.CanCancel)
	assert.Equal(t, int64(0), calc.AmountCents)

	// The provider override does not resurrect an already-started tour.
	calc = Evaluate(10000, start, now, Flexible, CancelledByProvider)
	assert.False(t, calc.CanCancel)
}

func TestEvaluate_ProviderAlwaysFullRefund(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(30 * time.Minute)

	// A customer this close to start gets nothing under Strict.
	customer := Evaluate(10000, start, now, Strict, CancelledByCustomer)
	assert.Equal(t, 0, customer.Percent)

	provider := Evaluate(10000, start, now, Strict, CancelledByProvider)
	assert.True(t, provider.CanCancel)
	assert.Equal(t, 100, provider.Percent)
	assert.Equal(t, int64(10000), provider.AmountCents)
}

func TestEvaluate_EmptyPolicyAllowsCancelWithoutRefund(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(48 * time.Hour)

	calc := Evaluate(10000, start, now, CancellationPolicy{Name: "none"}, CancelledByCustomer)
	assert.True(t, calc.CanCancel)
	assert.False(t, calc.IsRefundable)
	assert.Equal(t, int64(0), calc.AmountCents)
}

func TestEvaluate_ZeroAmountNotRefundable(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(48 * time.Hour)

	calc := Evaluate(0, start, now, Flexible, CancelledByCustomer)
	assert.True(t, calc.CanCancel)
	assert.False(t, calc.IsRefundable)
	assert.Equal(t, int64(0), calc.AmountCents)
}

func TestWindowPolicy(t *testing.T) {
	p := WindowPolicy(48)
	now := time.Now().UTC()

	full := Evaluate(20000, now.Add(49*time.Hour), now, p, CancelledByCustomer)
	assert.Equal(t, 100, full.Percent)

	half := Evaluate(20000, now.Add(30*time.Hour), now, p, CancelledByCustomer)
	assert.Equal(t, 50, half.Percent)
	assert.Equal(t, int64(10000), half.AmountCents)

	none := Evaluate(20000, now.Add(10*time.Hour), now, p, CancelledByCustomer)
	assert.Equal(t, 0, none.Percent)
}

func TestNormalized_SortsRulesDescending(t *testing.T) {
	p := CancellationPolicy{
		Name: "shuffled",
		Rules: []Rule{
			{HoursBefore: 0, RefundPercent: 0},
			{HoursBefore: 72, RefundPercent: 100},
			{HoursBefore: 24, RefundPercent: 50},
		},
	}

	n := p.Normalized()
	assert.Equal(t, float64(72), n.Rules[0].HoursBefore)
	assert.Equal(t, float64(24), n.Rules[1].HoursBefore)
	assert.Equal(t, float64(0), n.Rules[2].HoursBefore)
}
