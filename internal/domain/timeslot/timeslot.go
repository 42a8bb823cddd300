package timeslot

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlastours/service-booking/pkg/domain"
)

// TimeSlot is a bookable time window on a tour, tracking how many capacity
// seats are committed. 0 <= committed <= capacity holds at all times; the
// committed count only ever changes through the repository's reserve/release
// operations so concurrent bookings are serialized at the storage layer.
type TimeSlot struct {
	id        uuid.UUID
	tourID    uuid.UUID
	startTime time.Time
	endTime   time.Time
	capacity  int
	committed int
	createdAt time.Time
	updatedAt time.Time
}

// NewTimeSlot schedules a new, empty slot for a tour.
func NewTimeSlot(tourID uuid.UUID, startTime, endTime time.Time, capacity int) (*TimeSlot, error) {
	if tourID == uuid.Nil {
		return nil, domain.NewValidationError("tour ID is required")
	}
	if !endTime.After(startTime) {
		return nil, domain.NewValidationError("slot end must be after slot start")
	}
	if capacity < 1 {
		return nil, domain.NewValidationError("slot capacity must be positive")
	}

	now := time.Now().UTC()
	return &TimeSlot{
		id:        uuid.New(),
		tourID:    tourID,
		startTime: startTime,
		endTime:   endTime,
		capacity:  capacity,
		committed: 0,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a TimeSlot from persistence data (no validation).
func Reconstruct(id, tourID uuid.UUID, startTime, endTime time.Time, capacity, committed int, createdAt, updatedAt time.Time) *TimeSlot {
	return &TimeSlot{
		id:        id,
		tourID:    tourID,
		startTime: startTime,
		endTime:   endTime,
		capacity:  capacity,
		committed: committed,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the slot's unique identifier.
func (s *TimeSlot) ID() uuid.UUID { return s.id }

// TourID returns the tour this slot belongs to.
func (s *TimeSlot) TourID() uuid.UUID { return s.tourID }

// StartTime returns when the tour departs.
func (s *TimeSlot) StartTime() time.Time { return s.startTime }

// EndTime returns when the tour ends.
func (s *TimeSlot) EndTime() time.Time { return s.endTime }

// Capacity returns the total number of seats.
func (s *TimeSlot) Capacity() int { return s.capacity }

// Committed returns the number of seats already allocated.
func (s *TimeSlot) Committed() int { return s.committed }

// Available returns the number of seats still open.
func (s *TimeSlot) Available() int { return s.capacity - s.committed }

// HasStarted reports whether the slot's start time has passed.
func (s *TimeSlot) HasStarted(now time.Time) bool { return !s.startTime.After(now) }

// CreatedAt returns the creation timestamp.
func (s *TimeSlot) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (s *TimeSlot) UpdatedAt() time.Time { return s.updatedAt }
