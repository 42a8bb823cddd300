package tour

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlastours/service-booking/internal/domain/policy"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/pkg/domain"
)

// Tour is the aggregate owning a bookable product: its pricing configuration
// and its cancellation policy. Slots are scheduled against it, bookings are
// priced and refunded from it.
type Tour struct {
	id                 uuid.UUID
	providerID         uuid.UUID
	providerAccountRef string
	name               string
	description        string
	currency           string
	pricingConfig      pricing.Configuration
	cancelPolicy       policy.CancellationPolicy
	active             bool
	version            int64
	createdAt          time.Time
	updatedAt          time.Time
}

// NewTour creates an active tour after validating its pricing configuration.
// Configuration problems are rejected here, before the tour can ever be
// booked; they are never runtime errors.
func NewTour(
	providerID uuid.UUID,
	providerAccountRef string,
	name, description, currency string,
	pricingConfig pricing.Configuration,
	cancelPolicy policy.CancellationPolicy,
) (*Tour, error) {
	if providerID == uuid.Nil {
		return nil, domain.NewValidationError("provider ID is required")
	}
	if providerAccountRef == "" {
		return nil, domain.NewValidationError("provider account reference is required")
	}
	if name == "" {
		return nil, domain.NewValidationError("tour name is required")
	}
	if len(currency) != 3 {
		return nil, domain.NewValidationError("currency must be a 3-letter code")
	}
	if problems := pricingConfig.Validate(); len(problems) > 0 {
		return nil, domain.NewValidationError("invalid pricing configuration: " + strings.Join(problems, "; "))
	}

	now := time.Now().UTC()
	return &Tour{
		id:                 uuid.New(),
		providerID:         providerID,
		providerAccountRef: providerAccountRef,
		name:               name,
		description:        description,
		currency:           strings.ToUpper(currency),
		pricingConfig:      pricingConfig,
		cancelPolicy:       cancelPolicy.Normalized(),
		active:             true,
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// Reconstruct rebuilds a Tour from persistence data (no validation).
func Reconstruct(
	id, providerID uuid.UUID,
	providerAccountRef string,
	name, description, currency string,
	pricingConfig pricing.Configuration,
	cancelPolicy policy.CancellationPolicy,
	active bool,
	version int64,
	createdAt, updatedAt time.Time,
) *Tour {
	return &Tour{
		id:                 id,
		providerID:         providerID,
		providerAccountRef: providerAccountRef,
		name:               name,
		description:        description,
		currency:           currency,
		pricingConfig:      pricingConfig,
		cancelPolicy:       cancelPolicy,
		active:             active,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// ID returns the tour's unique identifier.
func (t *Tour) ID() uuid.UUID { return t.id }

// ProviderID returns the operating provider's user ID.
func (t *Tour) ProviderID() uuid.UUID { return t.providerID }

// ProviderAccountRef returns the provider's payout account reference.
func (t *Tour) ProviderAccountRef() string { return t.providerAccountRef }

// Name returns the tour name.
func (t *Tour) Name() string { return t.name }

// Description returns the tour description.
func (t *Tour) Description() string { return t.description }

// Currency returns the tour's settlement currency.
func (t *Tour) Currency() string { return t.currency }

// PricingConfig returns the tour's pricing configuration.
func (t *Tour) PricingConfig() pricing.Configuration { return t.pricingConfig }

// CancelPolicy returns the tour's cancellation policy.
func (t *Tour) CancelPolicy() policy.CancellationPolicy { return t.cancelPolicy }

// Active reports whether the tour accepts new bookings.
func (t *Tour) Active() bool { return t.active }

// Version returns the entity version for optimistic locking.
func (t *Tour) Version() int64 { return t.version }

// CreatedAt returns the creation timestamp.
func (t *Tour) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (t *Tour) UpdatedAt() time.Time { return t.updatedAt }

// UpdatePricing replaces the pricing configuration after validating it.
// Existing bookings keep the breakdown they were priced with.
func (t *Tour) UpdatePricing(cfg pricing.Configuration) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return domain.NewValidationError("invalid pricing configuration: " + strings.Join(problems, "; "))
	}
	t.pricingConfig = cfg
	t.updatedAt = time.Now().UTC()
	return nil
}

// UpdatePolicy replaces the cancellation policy. Already-cancelled bookings
// are unaffected; future cancellations evaluate against the new policy.
func (t *Tour) UpdatePolicy(p policy.CancellationPolicy) {
	t.cancelPolicy = p.Normalized()
	t.updatedAt = time.Now().UTC()
}

// Deactivate stops the tour from accepting new bookings.
func (t *Tour) Deactivate() {
	t.active = false
	t.updatedAt = time.Now().UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (t *Tour) IncrementVersion() {
	t.version++
	t.updatedAt = time.Now().UTC()
}
