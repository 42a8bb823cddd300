package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlastours/service-booking/internal/domain/policy"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/internal/domain/timeslot"
	tourDomain "github.com/atlastours/service-booking/internal/domain/tour"
	"github.com/atlastours/service-booking/pkg/auth"
	"github.com/atlastours/service-booking/pkg/domain"
)

// TourService manages tours and their schedules on behalf of providers.
type TourService struct {
	tours  tourDomain.Repository
	slots  timeslot.Repository
	logger *zap.Logger
}

// NewTourService creates a TourService.
func NewTourService(tours tourDomain.Repository, slots timeslot.Repository, logger *zap.Logger) *TourService {
	return &TourService{tours: tours, slots: slots, logger: logger}
}

// CreateTourInput describes a new tour. PolicyName selects a preset
// cancellation policy; WindowHours instead derives one from a single
// cancellation window. Exactly one of the two should be set.
type CreateTourInput struct {
	ProviderID         uuid.UUID
	ProviderAccountRef string
	Name               string
	Description        string
	Currency           string
	PricingConfig      pricing.Configuration
	PolicyName         string
	WindowHours        float64
}

// CreateTour creates a tour with its pricing configuration and cancellation
// policy. Configuration problems reject the request before anything persists.
func (s *TourService) CreateTour(ctx context.Context, in CreateTourInput) (*tourDomain.Tour, error) {
	cancelPolicy, err := resolvePolicy(in.PolicyName, in.WindowHours)
	if err != nil {
		return nil, err
	}

	t, err := tourDomain.NewTour(
		in.ProviderID, in.ProviderAccountRef,
		in.Name, in.Description, in.Currency,
		in.PricingConfig, cancelPolicy,
	)
	if err != nil {
		return nil, err
	}

	if err := s.tours.Save(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("tour created",
		zap.String("tour_id", t.ID().String()),
		zap.String("provider_id", t.ProviderID().String()))
	return t, nil
}

func resolvePolicy(name string, windowHours float64) (policy.CancellationPolicy, error) {
	if name != "" {
		p, ok := policy.ByName(name)
		if !ok {
			return policy.CancellationPolicy{}, domain.NewValidationError("unknown cancellation policy: " + name)
		}
		return p, nil
	}
	if windowHours > 0 {
		return policy.WindowPolicy(windowHours), nil
	}
	return policy.Moderate, nil
}

// GetTour retrieves a tour by ID.
func (s *TourService) GetTour(ctx context.Context, tourID uuid.UUID) (*tourDomain.Tour, error) {
	return s.tours.FindByID(ctx, tourID)
}

// GetProviderTours retrieves all tours operated by a provider.
func (s *TourService) GetProviderTours(ctx context.Context, providerID uuid.UUID) ([]*tourDomain.Tour, error) {
	return s.tours.FindByProviderID(ctx, providerID)
}

// UpdatePricing replaces a tour's pricing configuration. Existing bookings
// keep the breakdown they were priced with.
func (s *TourService) UpdatePricing(ctx context.Context, tourID, actorID uuid.UUID, role string, cfg pricing.Configuration) (*tourDomain.Tour, error) {
	t, err := s.findOwned(ctx, tourID, actorID, role)
	if err != nil {
		return nil, err
	}

	if err := t.UpdatePricing(cfg); err != nil {
		return nil, err
	}
	t.IncrementVersion()
	if err := s.tours.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdatePolicy replaces a tour's cancellation policy for future cancellations.
func (s *TourService) UpdatePolicy(ctx context.Context, tourID, actorID uuid.UUID, role, policyName string, windowHours float64) (*tourDomain.Tour, error) {
	t, err := s.findOwned(ctx, tourID, actorID, role)
	if err != nil {
		return nil, err
	}

	cancelPolicy, err := resolvePolicy(policyName, windowHours)
	if err != nil {
		return nil, err
	}

	t.UpdatePolicy(cancelPolicy)
	t.IncrementVersion()
	if err := s.tours.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeactivateTour closes a tour for new bookings. Existing bookings are not
// touched.
func (s *TourService) DeactivateTour(ctx context.Context, tourID, actorID uuid.UUID, role string) (*tourDomain.Tour, error) {
	t, err := s.findOwned(ctx, tourID, actorID, role)
	if err != nil {
		return nil, err
	}

	t.Deactivate()
	t.IncrementVersion()
	if err := s.tours.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ScheduleSlotInput describes a new departure slot for a tour.
type ScheduleSlotInput struct {
	TourID    uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Capacity  int
}

// ScheduleSlot adds a departure slot to a tour.
func (s *TourService) ScheduleSlot(ctx context.Context, actorID uuid.UUID, role string, in ScheduleSlotInput) (*timeslot.TimeSlot, error) {
	t, err := s.findOwned(ctx, in.TourID, actorID, role)
	if err != nil {
		return nil, err
	}

	slot, err := timeslot.NewTimeSlot(t.ID(), in.StartTime, in.EndTime, in.Capacity)
	if err != nil {
		return nil, err
	}
	if err := s.slots.Save(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

// ListAvailability retrieves a tour's upcoming slots.
func (s *TourService) ListAvailability(ctx context.Context, tourID uuid.UUID) ([]*timeslot.TimeSlot, error) {
	if _, err := s.tours.FindByID(ctx, tourID); err != nil {
		return nil, err
	}
	return s.slots.ListByTour(ctx, tourID, time.Now().UTC())
}

func (s *TourService) findOwned(ctx context.Context, tourID, actorID uuid.UUID, role string) (*tourDomain.Tour, error) {
	t, err := s.tours.FindByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && t.ProviderID() != actorID {
		return nil, domain.NewForbiddenError("tour belongs to another provider")
	}
	return t, nil
}
