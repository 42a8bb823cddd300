package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlastours/service-booking/internal/domain/booking"
	"github.com/atlastours/service-booking/internal/domain/timeslot"
	"github.com/atlastours/service-booking/internal/domain/tour"
)

// The GORM repositories must keep satisfying their domain contracts.
var (
	_ booking.Repository  = (*GormBookingRepository)(nil)
	_ timeslot.Repository = (*GormTimeSlotRepository)(nil)
	_ tour.Repository     = (*GormTourRepository)(nil)
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "bookings", BookingModel{}.TableName())
	assert.Equal(t, "time_slots", TimeSlotModel{}.TableName())
	assert.Equal(t, "tours", TourModel{}.TableName())
}
