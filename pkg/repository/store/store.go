package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

var (
	ErrSlotTaken = errors.New("slot_taken")
	ErrNotFound  = errors.New("not_found")
)

//go:embed schema.sql
var schema string

type PGRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ model.Repo = (*PGRepo)(nil)

func NewRepo(ctx context.Context, dsn string, logger zerolog.Logger) (*PGRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.New("failed to create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.New("failed to ping database").Wrap(err)
	}
	return &PGRepo{pool: pool, logger: logger.With().Str("component", "pg_repo").Logger()}, nil
}

func (r *PGRepo) Close() {
	r.pool.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (r *PGRepo) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return errs.New("failed to apply schema").Wrap(err)
	}
	r.logger.Info().Msg("schema applied")
	return nil
}

func (r *PGRepo) ListServices(ctx context.Context) ([]model.Service, error) {
	const q = `
		SELECT id, name, description, image, duration_min, price_minor
		FROM service
		WHERE is_active
		ORDER BY id;
	`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Service{}
	for rows.Next() {
		var (
			s     model.Service
			minor int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Image, &s.Duration, &minor); err != nil {
			return nil, err
		}
		s.Price = priceFromMinor(minor)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListStaff(ctx context.Context) ([]model.StaffMember, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, image FROM staff WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.StaffMember{}
	for rows.Next() {
		var m model.StaffMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Image); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetService(ctx context.Context, id int64) (*model.Service, error) {
	const q = `
		SELECT id, name, description, image, duration_min, price_minor
		FROM service
		WHERE id = $1 AND is_active;
	`
	var (
		s     model.Service
		minor int64
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.Name, &s.Description, &s.Image, &s.Duration, &minor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Price = priceFromMinor(minor)
	return &s, nil
}

// WorkingHours returns the shifts of active barbers on day's weekday, minus
// days off. staffID narrows the result to one barber.
func (r *PGRepo) WorkingHours(ctx context.Context, day time.Time, staffID *int64) ([]model.WorkingHours, error) {
	const q = `
		SELECT wh.staff_id,
		       EXTRACT(EPOCH FROM wh.time_start)::bigint,
		       EXTRACT(EPOCH FROM wh.time_end)::bigint
		FROM working_hours wh
		JOIN staff s ON s.id = wh.staff_id AND s.is_active
		WHERE wh.dow = $1
		  AND ($3::bigint IS NULL OR wh.staff_id = $3)
		  AND NOT EXISTS (
		      SELECT 1 FROM day_off d WHERE d.staff_id = wh.staff_id AND d.day = $2::date
		  )
		ORDER BY wh.staff_id;
	`
	rows, err := r.pool.Query(ctx, q, int(day.Weekday()), day.Format("2006-01-02"), staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WorkingHours
	for rows.Next() {
		var (
			h          model.WorkingHours
			start, end int64
		)
		if err := rows.Scan(&h.StaffID, &start, &end); err != nil {
			return nil, err
		}
		h.Start = time.Duration(start) * time.Second
		h.End = time.Duration(end) * time.Second
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *PGRepo) BusyIntervals(ctx context.Context, from, to time.Time, staffID *int64) ([]model.Interval, error) {
	const q = `
		SELECT staff_id, start_at, end_at
		FROM appointment
		WHERE status = 'booked'
		  AND start_at < $2
		  AND end_at > $1
		  AND ($3::bigint IS NULL OR staff_id = $3)
		ORDER BY start_at;
	`
	rows, err := r.pool.Query(ctx, q, from.UTC(), to.UTC(), staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Interval
	for rows.Next() {
		var iv model.Interval
		if err := rows.Scan(&iv.StaffID, &iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// CreateBooking upserts the customer by phone and books the first barber from
// candidates the exclusion constraint accepts. ErrSlotTaken means none did.
func (r *PGRepo) CreateBooking(ctx context.Context, a model.Appointment, c model.CustomerDetails, candidates []int64) (*model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsert = `
		INSERT INTO customer (name, phone, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		   SET name       = EXCLUDED.name,
		       email      = COALESCE(NULLIF(EXCLUDED.email, ''), customer.email),
		       updated_at = now()
		RETURNING id;
	`
	if err := tx.QueryRow(ctx, upsert, c.Name, c.Phone, c.Email).Scan(&a.CustomerID); err != nil {
		return nil, errs.New("failed to upsert customer").Wrap(err)
	}

	const insert = `
		INSERT INTO appointment (confirmation_id, customer_id, staff_id, service_id, start_at, end_at, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, 'booked', $7)
		RETURNING id;
	`
	for _, staffID := range candidates {
		// Savepoint per attempt: a conflict must not poison the transaction.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, err
		}
		err = sp.QueryRow(ctx, insert, a.ConfirmationID, a.CustomerID, staffID, a.ServiceID, a.StartAt.UTC(), a.EndAt.UTC(), a.Notes).Scan(&a.ID)
		if isSlotConflict(err) {
			_ = sp.Rollback(ctx)
			r.logger.Debug().Int64("staff_id", staffID).Msg("slot taken, trying next barber")
			continue
		}
		if err != nil {
			_ = sp.Rollback(ctx)
			return nil, err
		}
		if err := sp.Commit(ctx); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		a.StaffID = staffID
		a.Status = "booked"
		return &a, nil
	}
	return nil, ErrSlotTaken
}

// MarkFinished moves booked appointments that ended before the given instant to done.
func (r *PGRepo) MarkFinished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE appointment SET status='done' WHERE status='booked' AND end_at <= $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// isSlotConflict reports the exclusion (23P01) and unique (23505) violations.
func isSlotConflict(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && (pgerr.Code == "23P01" || pgerr.Code == "23505")
}

func priceFromMinor(minor int64) float64 {
	return float64(minor) / 100
}
