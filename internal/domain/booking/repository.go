package booking

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for booking aggregates.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its human-readable booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// FindByCustomerID retrieves bookings belonging to a customer with pagination.
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByTourID retrieves bookings for a tour with pagination.
	FindByTourID(ctx context.Context, tourID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, bk *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, bk *Booking) error
}
