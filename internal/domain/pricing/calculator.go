package pricing

import (
	"fmt"
	"strings"

	"github.com/atlastours/service-booking/pkg/domain"
)

// Input is a priced request: who is coming and which extras they picked.
type Input struct {
	TotalParticipants int
	CategoryCounts    map[string]int
	AddonIDs          []string
	Currency          string
}

// CategoryLine is one per-category row of a breakdown.
type CategoryLine struct {
	CategoryID     string `json:"category_id"`
	Label          string `json:"label"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Count          int    `json:"count"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// Breakdown is the fully itemized price of a booking. Pricing is
// all-inclusive: the customer total carries the processor fee as a separate
// line, and the provider receives the full subtotal. The fee is never folded
// into the base price.
type Breakdown struct {
	Currency      string         `json:"currency"`
	Lines         []CategoryLine `json:"lines,omitempty"`
	BaseCents     int64          `json:"base_cents"`
	DiscountCents int64          `json:"discount_cents"`
	AddonsCents   int64          `json:"addons_cents"`
	SubtotalCents int64          `json:"subtotal_cents"`
	FeeCents      int64          `json:"fee_cents"`
	TotalCents    int64          `json:"total_cents"`
	ProviderCents int64          `json:"provider_cents"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// IsFree reports whether nothing is owed, which bypasses payment entirely.
func (b Breakdown) IsFree() bool {
	return b.TotalCents == 0
}

// Calculate prices a booking request against the tour's configuration.
//
// Order of operations: base price by strategy, then group discount, then
// add-ons, then the processor fee on the discounted subtotal. A zero subtotal
// skips fee calculation entirely.
func Calculate(cfg Configuration, in Input) (Breakdown, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return Breakdown{}, domain.NewValidationError("invalid pricing configuration: " + strings.Join(problems, "; "))
	}
	if in.TotalParticipants < 1 {
		return Breakdown{}, domain.NewValidationError("at least one participant is required")
	}

	bd := Breakdown{Currency: in.Currency}

	base, err := basePrice(cfg, in, &bd)
	if err != nil {
		return Breakdown{}, err
	}
	bd.BaseCents = base

	discounted := applyGroupDiscount(cfg, in.TotalParticipants, &bd)
	addons := addonTotal(cfg, in, &bd)

	bd.AddonsCents = addons
	bd.SubtotalCents = discounted + addons
	if bd.SubtotalCents > 0 {
		bd.FeeCents = processorFee(in.Currency, bd.SubtotalCents)
	}
	bd.TotalCents = bd.SubtotalCents + bd.FeeCents
	bd.ProviderCents = bd.SubtotalCents

	return bd, nil
}

// basePrice computes the pre-discount base according to the active strategy.
// The switch is exhaustive over Mode; Validate has already rejected unknown modes.
func basePrice(cfg Configuration, in Input, bd *Breakdown) (int64, error) {
	switch cfg.Mode {
	case ModePerPerson:
		return cfg.PerPersonPriceCents * int64(in.TotalParticipants), nil

	case ModeParticipantCategories:
		var base int64
		for _, cat := range cfg.Categories {
			count := in.CategoryCounts[cat.ID]
			if count == 0 {
				continue
			}
			line := CategoryLine{
				CategoryID:     cat.ID,
				Label:          cat.Label,
				UnitPriceCents: cat.UnitPriceCents,
				Count:          count,
				SubtotalCents:  cat.UnitPriceCents * int64(count),
			}
			bd.Lines = append(bd.Lines, line)
			base += line.SubtotalCents
		}
		for id := range in.CategoryCounts {
			if _, ok := cfg.findCategory(id); !ok {
				bd.Warnings = append(bd.Warnings, fmt.Sprintf("unknown participant category %q ignored", id))
			}
		}
		return base, nil

	case ModeGroupTiers:
		tier, ok := cfg.matchTier(in.TotalParticipants)
		if !ok {
			return 0, domain.NewValidationError(fmt.Sprintf("no group tier matches party size %d", in.TotalParticipants))
		}
		return tier.FlatPriceCents, nil

	case ModePrivateTour:
		return cfg.PrivatePriceCents, nil

	default:
		return 0, domain.NewValidationError(fmt.Sprintf("unknown pricing mode %q", cfg.Mode))
	}
}

// applyGroupDiscount recomputes the base after the matching discount tier,
// returning the discounted base and recording the delta. Percentage discounts
// scale each unit price; fixed discounts replace it. For flat-priced
// strategies the adjustment applies to the base itself.
func applyGroupDiscount(cfg Configuration, totalParticipants int, bd *Breakdown) int64 {
	discount, ok := cfg.matchDiscount(totalParticipants)
	if !ok {
		return bd.BaseCents
	}

	var discounted int64
	switch cfg.Mode {
	case ModeParticipantCategories:
		for i := range bd.Lines {
			unit := discountedUnit(bd.Lines[i].UnitPriceCents, discount)
			bd.Lines[i].UnitPriceCents = unit
			bd.Lines[i].SubtotalCents = unit * int64(bd.Lines[i].Count)
			discounted += bd.Lines[i].SubtotalCents
		}
	case ModePerPerson:
		unit := discountedUnit(cfg.PerPersonPriceCents, discount)
		discounted = unit * int64(totalParticipants)
	default:
		if discount.Type == DiscountFixed {
			discounted = discount.FixedPriceCents
		} else {
			discounted = bd.BaseCents * int64(100-discount.Percent) / 100
		}
	}

	// A discount must never raise the price. A fixed replacement above the
	// original is treated as a misconfigured tier and skipped with a warning.
	if discounted > bd.BaseCents {
		bd.Warnings = append(bd.Warnings, "group discount would raise the price and was not applied")
		restoreLines(cfg, bd)
		return bd.BaseCents
	}

	bd.DiscountCents = bd.BaseCents - discounted
	return discounted
}

func discountedUnit(unitCents int64, d GroupDiscount) int64 {
	if d.Type == DiscountFixed {
		return d.FixedPriceCents
	}
	return unitCents * int64(100-d.Percent) / 100
}

func restoreLines(cfg Configuration, bd *Breakdown) {
	for i := range bd.Lines {
		if cat, ok := cfg.findCategory(bd.Lines[i].CategoryID); ok {
			bd.Lines[i].UnitPriceCents = cat.UnitPriceCents
			bd.Lines[i].SubtotalCents = cat.UnitPriceCents * int64(bd.Lines[i].Count)
		}
	}
}

// addonTotal sums the selected add-ons. Add-ons are priced per participant,
// not per booking; required add-ons are always included.
func addonTotal(cfg Configuration, in Input, bd *Breakdown) int64 {
	selected := make(map[string]bool, len(in.AddonIDs))
	for _, id := range in.AddonIDs {
		if _, ok := cfg.findAddon(id); !ok {
			bd.Warnings = append(bd.Warnings, fmt.Sprintf("unknown addon %q ignored", id))
			continue
		}
		selected[id] = true
	}

	var total int64
	for _, a := range cfg.Addons {
		if a.Required || selected[a.ID] {
			total += a.UnitPriceCents * int64(in.TotalParticipants)
		}
	}
	return total
}
