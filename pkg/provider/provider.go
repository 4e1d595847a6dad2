// Package provider holds the collaborators the booking wizard reads from and
// writes to: the catalog, the availability lookup and the booking submitter.
package provider

import (
	"context"
	"slices"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

// DefaultFailureMessage is the rejection text when the backend gives none.
const DefaultFailureMessage = "Failed to create booking. Please try again."

type Catalog interface {
	ListServices(ctx context.Context) ([]model.Service, error)
	ListStaff(ctx context.Context) ([]model.StaffMember, error)
}

// Availability returns the slot grid for one day. A nil staffID means no preference.
type Availability interface {
	GetAvailability(ctx context.Context, date string, serviceID int64, staffID *int64) ([]model.TimeSlot, error)
}

// Submitter persists a booking. A rejected booking is a non-nil outcome with
// Success=false; an error means the call itself failed.
type Submitter interface {
	CreateBooking(ctx context.Context, req model.BookingRequest) (model.BookingOutcome, error)
}

// SortSlots orders a grid chronologically in place. Labels are zero-padded
// HH:MM so string order is time order.
func SortSlots(slots []model.TimeSlot) {
	slices.SortStableFunc(slots, func(a, b model.TimeSlot) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
}
