package provider

import (
	"context"
	"hash/fnv"
	"slices"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

// Static is a fixed catalog. It backs demo deployments and is the dataset
// Fallback substitutes when the backend cannot be reached.
type Static struct{}

func (Static) ListServices(context.Context) ([]model.Service, error) {
	return []model.Service{
		{ID: 1, Name: "Classic Haircut", Price: 35, Duration: 30, Description: "Precision cut with hot towel finish"},
		{ID: 2, Name: "Executive Fade", Price: 45, Duration: 45, Description: "Sharp fade with skin taper"},
		{ID: 3, Name: "Beard Sculpting", Price: 30, Duration: 30, Description: "Expert shaping and grooming"},
		{ID: 4, Name: "Hot Towel Shave", Price: 40, Duration: 45, Description: "Traditional straight razor luxury"},
		{ID: 5, Name: "The Full Experience", Price: 85, Duration: 90, Description: "Haircut, beard trim, and hot towel shave"},
		{ID: 6, Name: "Hair & Beard Combo", Price: 60, Duration: 60, Description: "Complete grooming package"},
	}, nil
}

func (Static) ListStaff(context.Context) ([]model.StaffMember, error) {
	return []model.StaffMember{
		{ID: 1, Name: "Marcus Cole", Description: "Master Barber • 12 years experience"},
		{ID: 2, Name: "James Wright", Description: "Senior Stylist • Fade specialist"},
		{ID: 3, Name: "David Chen", Description: "Beard Artist • Precision cuts"},
	}, nil
}

var fallbackLabels = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"12:00", "12:30", "13:00", "13:30", "14:00", "14:30",
	"15:00", "15:30", "16:00", "16:30", "17:00", "17:30",
}

// GetAvailability returns the fallback grid. Roughly 30% of labels are marked
// taken, chosen by hashing the query so identical queries get identical grids.
func (Static) GetAvailability(_ context.Context, date string, serviceID int64, staffID *int64) ([]model.TimeSlot, error) {
	staff := "any"
	if staffID != nil {
		staff = strconv.FormatInt(*staffID, 10)
	}

	slots := make([]model.TimeSlot, 0, len(fallbackLabels))
	for _, label := range fallbackLabels {
		h := fnv.New32a()
		_, _ = h.Write([]byte(date + "|" + strconv.FormatInt(serviceID, 10) + "|" + staff + "|" + label))
		slots = append(slots, model.TimeSlot{Time: label, Available: h.Sum32()%10 >= 3})
	}
	return slots, nil
}

// Fallback wraps the remote providers and substitutes Static data when a read
// fails, so the wizard can always progress. Failures are logged, never returned.
type Fallback struct {
	catalog Catalog
	avail   Availability
	static  Static
	logger  zerolog.Logger
}

func NewFallback(catalog Catalog, avail Availability, logger zerolog.Logger) *Fallback {
	return &Fallback{
		catalog: catalog,
		avail:   avail,
		logger:  logger.With().Str("component", "provider_fallback").Logger(),
	}
}

func (f *Fallback) ListServices(ctx context.Context) ([]model.Service, error) {
	out, err := f.catalog.ListServices(ctx)
	if err != nil || len(out) == 0 {
		f.logger.Warn().Err(err).Msg("services unavailable, using fallback catalog")
		return f.static.ListServices(ctx)
	}
	return out, nil
}

func (f *Fallback) ListStaff(ctx context.Context) ([]model.StaffMember, error) {
	out, err := f.catalog.ListStaff(ctx)
	if err != nil {
		f.logger.Warn().Err(err).Msg("staff unavailable, using fallback roster")
		return f.static.ListStaff(ctx)
	}
	return out, nil
}

func (f *Fallback) GetAvailability(ctx context.Context, date string, serviceID int64, staffID *int64) ([]model.TimeSlot, error) {
	out, err := f.avail.GetAvailability(ctx, date, serviceID, staffID)
	if err != nil {
		// A superseded call is cancelled by the wizard; its result is dropped anyway.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn().Err(err).Str("date", date).Int64("service_id", serviceID).
			Msg("availability unavailable, using fallback grid")
		return f.static.GetAvailability(ctx, date, serviceID, staffID)
	}
	return slices.Clone(out), nil
}
