package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlastours/service-booking/internal/domain/timeslot"
	"github.com/atlastours/service-booking/pkg/domain"
)

// TimeSlotModel is the GORM model for the time_slots table.
type TimeSlotModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TourID    uuid.UUID `gorm:"type:uuid;index;not null"`
	StartTime time.Time `gorm:"not null;index"`
	EndTime   time.Time `gorm:"not null"`
	Capacity  int       `gorm:"not null"`
	Committed int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TimeSlotModel) TableName() string {
	return "time_slots"
}

// GormTimeSlotRepository is the GORM-based implementation of timeslot.Repository.
type GormTimeSlotRepository struct {
	db *gorm.DB
}

// NewGormTimeSlotRepository creates a new GormTimeSlotRepository.
func NewGormTimeSlotRepository(db *gorm.DB) *GormTimeSlotRepository {
	return &GormTimeSlotRepository{db: db}
}

// FindByID retrieves a slot by its unique identifier.
func (r *GormTimeSlotRepository) FindByID(ctx context.Context, id uuid.UUID) (*timeslot.TimeSlot, error) {
	var model TimeSlotModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("TimeSlot", id.String())
		}
		return nil, fmt.Errorf("failed to find time slot by ID: %w", err)
	}
	return toDomainTimeSlot(&model), nil
}

// ListByTour retrieves a tour's slots starting after the given time.
func (r *GormTimeSlotRepository) ListByTour(ctx context.Context, tourID uuid.UUID, after time.Time) ([]*timeslot.TimeSlot, error) {
	var models []TimeSlotModel
	if err := r.db.WithContext(ctx).
		Where("tour_id = ? AND start_time > ?", tourID, after).
		Order("start_time ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}

	slots := make([]*timeslot.TimeSlot, len(models))
	for i, m := range models {
		slots[i] = toDomainTimeSlot(&m)
	}
	return slots, nil
}

// Save persists a new slot.
func (r *GormTimeSlotRepository) Save(ctx context.Context, slot *timeslot.TimeSlot) error {
	model := &TimeSlotModel{
		ID:        slot.ID(),
		TourID:    slot.TourID(),
		StartTime: slot.StartTime(),
		EndTime:   slot.EndTime(),
		Capacity:  slot.Capacity(),
		Committed: slot.Committed(),
		CreatedAt: slot.CreatedAt(),
		UpdatedAt: slot.UpdatedAt(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save time slot: %w", err)
	}
	return nil
}

// Reserve atomically commits seats against the slot's capacity. The guard
// lives in the WHERE clause so two concurrent reservations for the last
// seats cannot both succeed, regardless of which instance runs them.
func (r *GormTimeSlotRepository) Reserve(ctx context.Context, slotID uuid.UUID, seats int) error {
	if seats <= 0 {
		return domain.NewValidationError("seats to reserve must be positive")
	}

	result := r.db.WithContext(ctx).Exec(
		`UPDATE time_slots
		 SET committed = committed + ?, updated_at = NOW()
		 WHERE id = ? AND committed + ? <= capacity`,
		seats, slotID, seats,
	)
	if result.Error != nil {
		return fmt.Errorf("failed to reserve seats: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing slot from a full one.
		var count int64
		if err := r.db.WithContext(ctx).Model(&TimeSlotModel{}).Where("id = ?", slotID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check time slot existence: %w", err)
		}
		if count == 0 {
			return domain.NewNotFoundError("TimeSlot", slotID.String())
		}
		return domain.NewCapacityError(fmt.Sprintf("time slot cannot hold %d more seats", seats))
	}
	return nil
}

// Release returns seats to the slot, floored at zero committed.
func (r *GormTimeSlotRepository) Release(ctx context.Context, slotID uuid.UUID, seats int) error {
	if seats <= 0 {
		return domain.NewValidationError("seats to release must be positive")
	}

	result := r.db.WithContext(ctx).Exec(
		`UPDATE time_slots
		 SET committed = GREATEST(committed - ?, 0), updated_at = NOW()
		 WHERE id = ?`,
		seats, slotID,
	)
	if result.Error != nil {
		return fmt.Errorf("failed to release seats: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("TimeSlot", slotID.String())
	}
	return nil
}

func toDomainTimeSlot(m *TimeSlotModel) *timeslot.TimeSlot {
	return timeslot.Reconstruct(m.ID, m.TourID, m.StartTime, m.EndTime, m.Capacity, m.Committed, m.CreatedAt, m.UpdatedAt)
}
