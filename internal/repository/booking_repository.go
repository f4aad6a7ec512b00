package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rmcalister/rinkroster/internal/model"
)

// BookingRepo provides data access to the bookings table.  A booking
// anchors at most one pool and any number of team instances.  Its
// format is frozen while instances exist, because position slot
// counts are derived from the format.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// that span repositories.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, booked_on, session, rink_count, format, gender, event_type, created_by, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.BookedOn, &b.Session, &b.RinkCount, &b.Format,
		&b.Gender, &b.EventType, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a booking and populates the generated id and
// timestamps on the passed record.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (booked_on, session, rink_count, format, gender, event_type, created_by)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.BookedOn.UTC().Format("2006-01-02"), b.Session,
		b.RinkCount, b.Format, b.Gender, b.EventType, b.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	got, err := scanBooking(r.db.QueryRowContext(ctx, sel, b.ID))
	if err != nil {
		return err
	}
	*b = *got
	return nil
}

// GetByID returns one booking or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// getByIDTx is GetByID inside an existing transaction, locking the
// booking row so a concurrent format change cannot race the caller.
func getBookingForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ListUpcoming returns bookings on or after the given date, oldest
// first.
func (r *BookingRepo) ListUpcoming(ctx context.Context, from time.Time) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE booked_on >= ? ORDER BY booked_on, session`
	rows, err := r.db.QueryContext(ctx, q, from.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Update rewrites a booking's mutable fields.  Changing the format is
// rejected with ErrFormatLocked once any team instance exists for the
// booking; position slot counts depend on the format.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	current, err := getBookingForUpdateTx(ctx, tx, b.ID)
	if err != nil {
		return mapLockErr(err)
	}
	if current.Format != b.Format {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM team_instances WHERE booking_id = ?`, b.ID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrFormatLocked
		}
	}
	const q = `UPDATE bookings
	           SET booked_on = ?, session = ?, rink_count = ?, format = ?, gender = ?, event_type = ?,
	               updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, b.BookedOn.UTC().Format("2006-01-02"), b.Session,
		b.RinkCount, b.Format, b.Gender, b.EventType, b.ID); err != nil {
		return mapLockErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapLockErr(err)
	}
	committed = true
	return nil
}

// Delete removes a booking.  Pools, registrations, team instances,
// assignments and substitution entries cascade via foreign keys.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return mapLockErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}
