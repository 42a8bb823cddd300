package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlastours/service-booking/internal/domain/policy"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/internal/domain/tour"
	"github.com/atlastours/service-booking/pkg/domain"
)

// TourModel is the GORM model for the tours table.
type TourModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProviderID         uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProviderAccountRef string          `gorm:"size:100"`
	Name               string          `gorm:"not null;size:200"`
	Description        string          `gorm:"size:2000"`
	Currency           string          `gorm:"not null;size:3"`
	PricingConfig      json.RawMessage `gorm:"type:jsonb;not null"`
	CancelPolicy       json.RawMessage `gorm:"type:jsonb;not null"`
	Active             bool            `gorm:"not null;default:true"`
	Version            int64           `gorm:"not null;default:1"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TourModel) TableName() string {
	return "tours"
}

// GormTourRepository is the GORM-based implementation of tour.Repository.
type GormTourRepository struct {
	db *gorm.DB
}

// NewGormTourRepository creates a new GormTourRepository.
func NewGormTourRepository(db *gorm.DB) *GormTourRepository {
	return &GormTourRepository{db: db}
}

// FindByID retrieves a tour by its unique identifier.
func (r *GormTourRepository) FindByID(ctx context.Context, id uuid.UUID) (*tour.Tour, error) {
	var model TourModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Tour", id.String())
		}
		return nil, fmt.Errorf("failed to find tour by ID: %w", err)
	}
	return toDomainTour(&model)
}

// FindByProviderID retrieves all tours operated by a provider.
func (r *GormTourRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID) ([]*tour.Tour, error) {
	var models []TourModel
	if err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find tours by provider: %w", err)
	}

	tours := make([]*tour.Tour, len(models))
	for i, m := range models {
		t, err := toDomainTour(&m)
		if err != nil {
			return nil, err
		}
		tours[i] = t
	}
	return tours, nil
}

// Save persists a new tour.
func (r *GormTourRepository) Save(ctx context.Context, t *tour.Tour) error {
	model, err := toTourModel(t)
	if err != nil {
		return fmt.Errorf("failed to convert tour to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save tour: %w", err)
	}
	return nil
}

// Update persists changes to an existing tour with optimistic locking.
func (r *GormTourRepository) Update(ctx context.Context, t *tour.Tour) error {
	model, err := toTourModel(t)
	if err != nil {
		return fmt.Errorf("failed to convert tour to model: %w", err)
	}

	expectedVersion := t.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&TourModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":           model.Name,
			"description":    model.Description,
			"pricing_config": model.PricingConfig,
			"cancel_policy":  model.CancelPolicy,
			"active":         model.Active,
			"version":        model.Version,
			"updated_at":     model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update tour: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("tour was modified by another transaction")
	}
	return nil
}

func toTourModel(t *tour.Tour) (*TourModel, error) {
	pricingConfig, err := json.Marshal(t.PricingConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pricing config: %w", err)
	}
	cancelPolicy, err := json.Marshal(t.CancelPolicy())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cancellation policy: %w", err)
	}

	return &TourModel{
		ID:                 t.ID(),
		ProviderID:         t.ProviderID(),
		ProviderAccountRef: t.ProviderAccountRef(),
		Name:               t.Name(),
		Description:        t.Description(),
		Currency:           t.Currency(),
		PricingConfig:      pricingConfig,
		CancelPolicy:       cancelPolicy,
		Active:             t.Active(),
		Version:            t.Version(),
		CreatedAt:          t.CreatedAt(),
		UpdatedAt:          t.UpdatedAt(),
	}, nil
}

func toDomainTour(m *TourModel) (*tour.Tour, error) {
	var pricingConfig pricing.Configuration
	if err := json.Unmarshal(m.PricingConfig, &pricingConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing config: %w", err)
	}
	var cancelPolicy policy.CancellationPolicy
	if err := json.Unmarshal(m.CancelPolicy, &cancelPolicy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cancellation policy: %w", err)
	}

	return tour.Reconstruct(
		m.ID,
		m.ProviderID,
		m.ProviderAccountRef,
		m.Name,
		m.Description,
		m.Currency,
		pricingConfig,
		cancelPolicy,
		m.Active,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
