package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

func TestIsSlotConflict(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&pgconn.PgError{Code: "23P01"}, true},
		{&pgconn.PgError{Code: "23505"}, true},
		{fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01"}), true},
		{&pgconn.PgError{Code: "23503"}, false},
		{errors.New("boom"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := isSlotConflict(c.err); got != c.want {
			t.Fatalf("isSlotConflict(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestPriceFromMinor(t *testing.T) {
	if p := priceFromMinor(4500); p != 45 {
		t.Fatalf("expected 45, got %v", p)
	}
	if p := priceFromMinor(3550); p != 35.5 {
		t.Fatalf("expected 35.5, got %v", p)
	}
}

func TestSchemaGuardsAgainstDoubleBooking(t *testing.T) {
	if !strings.Contains(schema, "CONSTRAINT no_overlap EXCLUDE USING gist") {
		t.Fatalf("schema must carry the overlap exclusion constraint")
	}
}

// TestPGRepo_BookingLifecycle runs against a scratch database when
// TEST_DATABASE_URL is set.
func TestPGRepo_BookingLifecycle(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := NewRepo(ctx, dsn, zerolog.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	services, err := repo.ListServices(ctx)
	if err != nil || len(services) < 6 {
		t.Fatalf("expected seeded services, got %d (%v)", len(services), err)
	}

	// Far enough ahead that reruns do not collide with earlier data.
	start := time.Now().UTC().Truncate(time.Hour).Add(time.Duration(24*365+time.Now().UnixNano()%100000) * time.Hour)
	appt := model.Appointment{
		ConfirmationID: uuid.NewString(),
		ServiceID:      1,
		StartAt:        start,
		EndAt:          start.Add(30 * time.Minute),
	}
	cust := model.CustomerDetails{Name: "John Smith", Phone: "5551234567-" + uuid.NewString()[:8]}

	got, err := repo.CreateBooking(ctx, appt, cust, []int64{1})
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if got.StaffID != 1 || got.ID == 0 {
		t.Fatalf("unexpected appointment %+v", got)
	}

	appt.ConfirmationID = uuid.NewString()
	if _, err := repo.CreateBooking(ctx, appt, cust, []int64{1}); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	second, err := repo.CreateBooking(ctx, appt, cust, []int64{1, 2})
	if err != nil || second.StaffID != 2 {
		t.Fatalf("expected fallback to barber 2, got %+v (%v)", second, err)
	}

	busy, err := repo.BusyIntervals(ctx, start, start.Add(time.Hour), nil)
	if err != nil || len(busy) < 2 {
		t.Fatalf("expected both bookings as busy, got %v (%v)", busy, err)
	}
}
