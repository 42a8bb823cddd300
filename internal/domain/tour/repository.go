package tour

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for tour aggregates.
type Repository interface {
	// FindByID retrieves a tour by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Tour, error)

	// FindByProviderID retrieves all tours operated by a provider.
	FindByProviderID(ctx context.Context, providerID uuid.UUID) ([]*Tour, error)

	// Save persists a new tour.
	Save(ctx context.Context, t *Tour) error

	// Update persists changes to an existing tour with optimistic locking.
	Update(ctx context.Context, t *Tour) error
}
