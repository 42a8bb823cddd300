package pricing

import "fmt"

// Mode selects the pricing strategy for a tour. The set is closed: every
// switch over Mode must handle all four cases and reject anything else.
type Mode string

const (
	ModePerPerson             Mode = "per_person"
	ModeParticipantCategories Mode = "participant_categories"
	ModeGroupTiers            Mode = "group_tiers"
	ModePrivateTour           Mode = "private_tour"
)

// IsValid returns true if the mode is a recognized pricing strategy.
func (m Mode) IsValid() bool {
	switch m {
	case ModePerPerson, ModeParticipantCategories, ModeGroupTiers, ModePrivateTour:
		return true
	}
	return false
}

// DiscountType selects how a group discount tier adjusts prices.
type DiscountType string

const (
	// DiscountPercentage scales unit prices down by a percentage.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed replaces the unit price with a fixed one.
	DiscountFixed DiscountType = "fixed"
)

// ParticipantCategory is one age-banded price class within a tour
// (e.g. adult, child, infant).
type ParticipantCategory struct {
	ID                   string `json:"id"`
	Label                string `json:"label"`
	UnitPriceCents       int64  `json:"unit_price_cents"`
	MinAge               int    `json:"min_age"`
	MaxAge               int    `json:"max_age"`
	CountsTowardCapacity bool   `json:"counts_toward_capacity"`
}

// GroupTier is a flat price for a whole group whose size falls in [Min, Max].
type GroupTier struct {
	MinParticipants int   `json:"min_participants"`
	MaxParticipants int   `json:"max_participants"`
	FlatPriceCents  int64 `json:"flat_price_cents"`
}

// GroupDiscount adjusts pricing when the group size falls in [Min, Max].
type GroupDiscount struct {
	MinParticipants int          `json:"min_participants"`
	MaxParticipants int          `json:"max_participants"`
	Type            DiscountType `json:"type"`
	Percent         int          `json:"percent,omitempty"`
	FixedPriceCents int64        `json:"fixed_price_cents,omitempty"`
}

// Addon is an optional extra priced per participant, not per booking.
type Addon struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Required       bool   `json:"required"`
}

// Configuration is a tour's full pricing setup: one active strategy plus
// optional group discounts and an add-on catalog.
type Configuration struct {
	Mode                Mode                  `json:"mode"`
	PerPersonPriceCents int64                 `json:"per_person_price_cents,omitempty"`
	Categories          []ParticipantCategory `json:"categories,omitempty"`
	Tiers               []GroupTier           `json:"tiers,omitempty"`
	PrivatePriceCents   int64                 `json:"private_price_cents,omitempty"`
	GroupDiscounts      []GroupDiscount       `json:"group_discounts,omitempty"`
	Addons              []Addon               `json:"addons,omitempty"`
}

// Validate checks the configuration for structural errors. All findings are
// configuration errors, caught before a config is ever used at runtime:
// negative prices, duplicate ids, and overlapping ranges are rejected hard.
func (c Configuration) Validate() []string {
	var problems []string

	switch c.Mode {
	case ModePerPerson:
		if c.PerPersonPriceCents < 0 {
			problems = append(problems, "per-person price must not be negative")
		}
	case ModeParticipantCategories:
		if len(c.Categories) == 0 {
			problems = append(problems, "participant_categories mode requires at least one category")
		}
		seen := make(map[string]bool, len(c.Categories))
		for _, cat := range c.Categories {
			if cat.ID == "" {
				problems = append(problems, "category id must not be empty")
				continue
			}
			if seen[cat.ID] {
				problems = append(problems, fmt.Sprintf("duplicate category id %q", cat.ID))
			}
			seen[cat.ID] = true
			if cat.UnitPriceCents < 0 {
				problems = append(problems, fmt.Sprintf("category %q price must not be negative", cat.ID))
			}
			if cat.MaxAge != 0 && cat.MinAge > cat.MaxAge {
				problems = append(problems, fmt.Sprintf("category %q has min age above max age", cat.ID))
			}
		}
	case ModeGroupTiers:
		if len(c.Tiers) == 0 {
			problems = append(problems, "group_tiers mode requires at least one tier")
		}
		for i, tier := range c.Tiers {
			if tier.MinParticipants < 1 || tier.MaxParticipants < tier.MinParticipants {
				problems = append(problems, fmt.Sprintf("tier %d has an invalid participant range", i))
			}
			if tier.FlatPriceCents < 0 {
				problems = append(problems, fmt.Sprintf("tier %d price must not be negative", i))
			}
		}
		problems = append(problems, overlapProblems("tier", tierRanges(c.Tiers))...)
	case ModePrivateTour:
		if c.PrivatePriceCents < 0 {
			problems = append(problems, "private tour price must not be negative")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown pricing mode %q", c.Mode))
	}

	for i, d := range c.GroupDiscounts {
		if d.MinParticipants < 1 || d.MaxParticipants < d.MinParticipants {
			problems = append(problems, fmt.Sprintf("group discount %d has an invalid participant range", i))
		}
		switch d.Type {
		case DiscountPercentage:
			if d.Percent < 0 || d.Percent > 100 {
				problems = append(problems, fmt.Sprintf("group discount %d percent must be within 0-100", i))
			}
		case DiscountFixed:
			if d.FixedPriceCents < 0 {
				problems = append(problems, fmt.Sprintf("group discount %d fixed price must not be negative", i))
			}
		default:
			problems = append(problems, fmt.Sprintf("group discount %d has unknown type %q", i, d.Type))
		}
	}
	problems = append(problems, overlapProblems("group discount", discountRanges(c.GroupDiscounts))...)

	seenAddons := make(map[string]bool, len(c.Addons))
	for _, a := range c.Addons {
		if a.ID == "" {
			problems = append(problems, "addon id must not be empty")
			continue
		}
		if seenAddons[a.ID] {
			problems = append(problems, fmt.Sprintf("duplicate addon id %q", a.ID))
		}
		seenAddons[a.ID] = true
		if a.UnitPriceCents < 0 {
			problems = append(problems, fmt.Sprintf("addon %q price must not be negative", a.ID))
		}
	}

	return problems
}

// CountingParticipants returns how many of the requested participants occupy
// a capacity seat. Categories flagged as not counting (e.g. infants on a lap)
// are excluded; non-category strategies count everyone.
func (c Configuration) CountingParticipants(total int, categoryCounts map[string]int) int {
	if c.Mode != ModeParticipantCategories {
		return total
	}
	counting := 0
	for _, cat := range c.Categories {
		if !cat.CountsTowardCapacity {
			continue
		}
		counting += categoryCounts[cat.ID]
	}
	return counting
}

func (c Configuration) findCategory(id string) (ParticipantCategory, bool) {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return ParticipantCategory{}, false
}

func (c Configuration) findAddon(id string) (Addon, bool) {
	for _, a := range c.Addons {
		if a.ID == id {
			return a, true
		}
	}
	return Addon{}, false
}

func (c Configuration) matchTier(participants int) (GroupTier, bool) {
	for _, tier := range c.Tiers {
		if participants >= tier.MinParticipants && participants <= tier.MaxParticipants {
			return tier, true
		}
	}
	return GroupTier{}, false
}

func (c Configuration) matchDiscount(participants int) (GroupDiscount, bool) {
	for _, d := range c.GroupDiscounts {
		if participants >= d.MinParticipants && participants <= d.MaxParticipants {
			return d, true
		}
	}
	return GroupDiscount{}, false
}

type countRange struct {
	min, max int
}

func tierRanges(tiers []GroupTier) []countRange {
	ranges := make([]countRange, len(tiers))
	for i, t := range tiers {
		ranges[i] = countRange{t.MinParticipants, t.MaxParticipants}
	}
	return ranges
}

func discountRanges(discounts []GroupDiscount) []countRange {
	ranges := make([]countRange, len(discounts))
	for i, d := range discounts {
		ranges[i] = countRange{d.MinParticipants, d.MaxParticipants}
	}
	return ranges
}

func overlapProblems(kind string, ranges []countRange) []string {
	var problems []string
	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].min <= ranges[j].max && ranges[j].min <= ranges[i].max {
				problems = append(problems, fmt.Sprintf("%s ranges %d and %d overlap", kind, i, j))
			}
		}
	}
	return problems
}
