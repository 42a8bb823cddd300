package timeslot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for time slots. Reserve and Release
// are the capacity ledger: both must be implemented as atomic conditional
// updates at the storage layer, never via in-process locking, because
// reservations for the same slot may arrive on different worker instances.
type Repository interface {
	// FindByID retrieves a slot by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)

	// ListByTour retrieves a tour's slots starting after the given time.
	ListByTour(ctx context.Context, tourID uuid.UUID, after time.Time) ([]*TimeSlot, error)

	// Save persists a new slot.
	Save(ctx context.Context, slot *TimeSlot) error

	// Reserve atomically commits seats if committed+seats <= capacity,
	// returning a CapacityError when the slot cannot hold them. Two
	// concurrent reservations for the last seats must not both succeed.
	Reserve(ctx context.Context, slotID uuid.UUID, seats int) error

	// Release returns seats to the slot, floored at zero committed so a
	// double release cannot drive the count negative.
	Release(ctx context.Context, slotID uuid.UUID, seats int) error
}
