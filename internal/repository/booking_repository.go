package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/atlastours/service-booking/internal/domain/booking"
	"github.com/atlastours/service-booking/internal/domain/policy"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/pkg/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber     string          `gorm:"uniqueIndex;not null;size:20"`
	TourID            uuid.UUID       `gorm:"type:uuid;index;not null"`
	SlotID            uuid.UUID       `gorm:"type:uuid;index;not null"`
	CustomerID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	TotalParticipants int             `gorm:"not null"`
	CategoryCounts    json.RawMessage `gorm:"type:jsonb"`
	SeatsReserved     int             `gorm:"not null"`
	AddonIDs          json.RawMessage `gorm:"type:jsonb"`
	Price             json.RawMessage `gorm:"type:jsonb;not null"`
	Currency          string          `gorm:"not null;size:3"`
	Status            string          `gorm:"not null;size:30;index"`
	PaymentStatus     string          `gorm:"not null;size:30;index"`
	ChargeRef         string          `gorm:"size:100"`
	PaidOut           bool            `gorm:"not null;default:false"`
	PayoutRef         string          `gorm:"size:100"`
	CancelledBy       string          `gorm:"size:20"`
	CancelReason      string          `gorm:"size:500"`
	CancelledAt       *time.Time      `gorm:""`
	RefundStatus      string          `gorm:"not null;size:20;default:'none'"`
	RefundPercent     int             `gorm:"not null;default:0"`
	RefundAmountCents int64           `gorm:"not null;default:0"`
	RefundRef         string          `gorm:"size:100"`
	RefundFailure     string          `gorm:"size:500"`
	Version           int64           `gorm:"not null;default:1"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of booking.Repository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByCustomerID retrieves bookings for a customer with pagination.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPaged(ctx, "customer_id = ?", customerID, page, limit)
}

// FindByTourID retrieves bookings for a tour with pagination.
func (r *GormBookingRepository) FindByTourID(ctx context.Context, tourID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPaged(ctx, "tour_id = ?", tourID, page, limit)
}

func (r *GormBookingRepository) findPaged(ctx context.Context, cond string, arg interface{}, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where(cond, arg).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where(cond, arg).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Only update if the version matches (current version - 1, since
	// IncrementVersion was called before persisting).
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":              model.Status,
			"payment_status":      model.PaymentStatus,
			"charge_ref":          model.ChargeRef,
			"paid_out":            model.PaidOut,
			"payout_ref":          model.PayoutRef,
			"cancelled_by":        model.CancelledBy,
			"cancel_reason":       model.CancelReason,
			"cancelled_at":        model.CancelledAt,
			"refund_status":       model.RefundStatus,
			"refund_percent":      model.RefundPercent,
			"refund_amount_cents": model.RefundAmountCents,
			"refund_ref":          model.RefundRef,
			"refund_failure":      model.RefundFailure,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	categoryCounts, err := json.Marshal(bk.CategoryCounts())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal category counts: %w", err)
	}
	addonIDs, err := json.Marshal(bk.AddonIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal addon ids: %w", err)
	}
	price, err := json.Marshal(bk.Price())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price breakdown: %w", err)
	}

	return &BookingModel{
		ID:                bk.ID(),
		BookingNumber:     bk.BookingNumber(),
		TourID:            bk.TourID(),
		SlotID:            bk.SlotID(),
		CustomerID:        bk.CustomerID(),
		TotalParticipants: bk.TotalParticipants(),
		CategoryCounts:    categoryCounts,
		SeatsReserved:     bk.SeatsReserved(),
		AddonIDs:          addonIDs,
		Price:             price,
		Currency:          bk.Currency(),
		Status:            string(bk.Status()),
		PaymentStatus:     string(bk.PaymentStatus()),
		ChargeRef:         bk.ChargeRef(),
		PaidOut:           bk.PaidOut(),
		PayoutRef:         bk.PayoutRef(),
		CancelledBy:       string(bk.CancelledBy()),
		CancelReason:      bk.CancelReason(),
		CancelledAt:       bk.CancelledAt(),
		RefundStatus:      string(bk.RefundStatus()),
		RefundPercent:     bk.RefundPercent(),
		RefundAmountCents: bk.RefundAmountCents(),
		RefundRef:         bk.RefundRef(),
		RefundFailure:     bk.RefundFailure(),
		Version:           bk.Version(),
		CreatedAt:         bk.CreatedAt(),
		UpdatedAt:         bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var categoryCounts map[string]int
	if len(m.CategoryCounts) > 0 {
		if err := json.Unmarshal(m.CategoryCounts, &categoryCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category counts: %w", err)
		}
	}

	var addonIDs []string
	if len(m.AddonIDs) > 0 {
		if err := json.Unmarshal(m.AddonIDs, &addonIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal addon ids: %w", err)
		}
	}

	var price pricing.Breakdown
	if err := json.Unmarshal(m.Price, &price); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price breakdown: %w", err)
	}

	status, err := bookingDomain.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := bookingDomain.ParsePaymentStatus(m.PaymentStatus)
	if err != nil {
		return nil, err
	}

	return bookingDomain.Reconstruct(
		m.ID,
		m.BookingNumber,
		m.TourID,
		m.SlotID,
		m.CustomerID,
		m.TotalParticipants,
		categoryCounts,
		m.SeatsReserved,
		addonIDs,
		price,
		m.Currency,
		status,
		paymentStatus,
		m.ChargeRef,
		m.PaidOut,
		m.PayoutRef,
		policy.CancelledBy(m.CancelledBy),
		m.CancelReason,
		m.CancelledAt,
		bookingDomain.RefundStatus(m.RefundStatus),
		m.RefundPercent,
		m.RefundAmountCents,
		m.RefundRef,
		m.RefundFailure,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
