package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rmcalister/rinkroster/internal/model"
)

// PoolRepo provides data access to pools and pool_registrations.  All
// mutations run inside a transaction that locks the pool row first,
// so an open-check can never race a concurrent close between the
// check and the write.
type PoolRepo struct {
	db *sql.DB
}

// NewPoolRepo returns a PoolRepo bound to the given database.
func NewPoolRepo(db *sql.DB) *PoolRepo { return &PoolRepo{db: db} }

const poolColumns = `id, booking_id, is_open, auto_close_at, created_at, closed_at`

func scanPool(row interface{ Scan(...any) error }) (*model.Pool, error) {
	var p model.Pool
	var autoClose, closedAt sql.NullTime
	err := row.Scan(&p.ID, &p.BookingID, &p.IsOpen, &autoClose, &p.CreatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	if autoClose.Valid {
		t := autoClose.Time
		p.AutoCloseAt = &t
	}
	if closedAt.Valid {
		t := closedAt.Time
		p.ClosedAt = &t
	}
	return &p, nil
}

const registrationColumns = `id, pool_id, member_id, status, registered_at, last_updated, withdrawn_at`

func scanRegistration(row interface{ Scan(...any) error }) (*model.PoolRegistration, error) {
	var reg model.PoolRegistration
	var withdrawnAt sql.NullTime
	err := row.Scan(&reg.ID, &reg.PoolID, &reg.MemberID, &reg.Status,
		&reg.RegisteredAt, &reg.LastUpdated, &withdrawnAt)
	if err != nil {
		return nil, err
	}
	if withdrawnAt.Valid {
		t := withdrawnAt.Time
		reg.WithdrawnAt = &t
	}
	return &reg, nil
}

// Create opens a pool on a booking.  The pools table carries a unique
// index on booking_id, so a second pool for the same booking surfaces
// as ErrPoolExists.  A missing booking surfaces as
// ErrBookingNotFound via the foreign key.
func (r *PoolRepo) Create(ctx context.Context, bookingID uint64, autoCloseAt *time.Time) (*model.Pool, error) {
	const q = `INSERT INTO pools (booking_id, is_open, auto_close_at) VALUES (?, TRUE, ?)`
	var auto any
	if autoCloseAt != nil {
		auto = autoCloseAt.UTC().Format("2006-01-02 15:04:05")
	}
	res, err := r.db.ExecContext(ctx, q, bookingID, auto)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrPoolExists
		}
		if isForeignKeyErr(err) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID returns one pool or ErrPoolNotFound.
func (r *PoolRepo) GetByID(ctx context.Context, id uint64) (*model.Pool, error) {
	const q = `SELECT ` + poolColumns + ` FROM pools WHERE id = ?`
	p, err := scanPool(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPoolNotFound
	}
	return p, err
}

// GetByBooking returns the pool attached to a booking or
// ErrPoolNotFound.
func (r *PoolRepo) GetByBooking(ctx context.Context, bookingID uint64) (*model.Pool, error) {
	const q = `SELECT ` + poolColumns + ` FROM pools WHERE booking_id = ?`
	p, err := scanPool(r.db.QueryRowContext(ctx, q, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPoolNotFound
	}
	return p, err
}

// getPoolForUpdateTx loads and locks a pool row inside a transaction.
// When the pool carries an elapsed auto_close_at it is closed here,
// under the same lock, before the caller sees it.
func getPoolForUpdateTx(ctx context.Context, tx *sql.Tx, poolID uint64) (*model.Pool, error) {
	const q = `SELECT ` + poolColumns + ` FROM pools WHERE id = ? FOR UPDATE`
	p, err := scanPool(tx.QueryRowContext(ctx, q, poolID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.IsOpen && p.AutoCloseAt != nil && !p.AutoCloseAt.After(time.Now().UTC()) {
		const close = `UPDATE pools SET is_open = FALSE, closed_at = UTC_TIMESTAMP() WHERE id = ?`
		if _, err := tx.ExecContext(ctx, close, poolID); err != nil {
			return nil, err
		}
		p.IsOpen = false
		now := time.Now().UTC()
		p.ClosedAt = &now
	}
	return p, nil
}

// Close marks a pool closed.  Closing an already-closed pool is a
// no-op, not an error.
func (r *PoolRepo) Close(ctx context.Context, poolID uint64) (*model.Pool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	p, err := getPoolForUpdateTx(ctx, tx, poolID)
	if err != nil {
		return nil, mapLockErr(err)
	}
	if p.IsOpen {
		const q = `UPDATE pools SET is_open = FALSE, closed_at = UTC_TIMESTAMP() WHERE id = ?`
		if _, err := tx.ExecContext(ctx, q, poolID); err != nil {
			return nil, mapLockErr(err)
		}
		p.IsOpen = false
		now := time.Now().UTC()
		p.ClosedAt = &now
	}
	if err := tx.Commit(); err != nil {
		return nil, mapLockErr(err)
	}
	committed = true
	return p, nil
}

// RegisterOutcome reports what Register actually did to the
// (pool, member) row.
type RegisterOutcome string

const (
	RegisterCreated     RegisterOutcome = "created"     // new row inserted
	RegisterReactivated RegisterOutcome = "reactivated" // withdrawn row brought back
	RegisterUnchanged   RegisterOutcome = "unchanged"   // live row already existed
)

// Register records a member's interest in an open pool.  The pool row
// is locked for the duration of the transaction, so the open-check
// and the insert are atomic with respect to a concurrent close.  When
// a withdrawn registration already exists for the (pool, member) pair
// it is reactivated in place; a live registration is returned
// untouched.  A second row per pair is never created.  Registering on
// a closed pool returns ErrPoolClosed and writes nothing.
func (r *PoolRepo) Register(ctx context.Context, poolID, memberID uint64) (*model.PoolRegistration, RegisterOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	p, err := getPoolForUpdateTx(ctx, tx, poolID)
	if err != nil {
		return nil, "", mapLockErr(err)
	}
	if !p.IsOpen {
		return nil, "", ErrPoolClosed
	}
	var reg *model.PoolRegistration
	outcome := RegisterCreated
	const sel = `SELECT ` + registrationColumns + ` FROM pool_registrations
	             WHERE pool_id = ? AND member_id = ? FOR UPDATE`
	existing, err := scanRegistration(tx.QueryRowContext(ctx, sel, poolID, memberID))
	switch {
	case err == nil:
		if existing.Status != model.RegistrationWithdrawn {
			if err := tx.Commit(); err != nil {
				return nil, "", mapLockErr(err)
			}
			committed = true
			return existing, RegisterUnchanged, nil
		}
		const up = `UPDATE pool_registrations
		            SET status = ?, withdrawn_at = NULL, last_updated = UTC_TIMESTAMP()
		            WHERE id = ?`
		if _, err := tx.ExecContext(ctx, up, model.RegistrationRegistered, existing.ID); err != nil {
			return nil, "", mapLockErr(err)
		}
		reg, err = scanRegistration(tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM pool_registrations WHERE id = ?`, existing.ID))
		if err != nil {
			return nil, "", err
		}
		outcome = RegisterReactivated
	case errors.Is(err, sql.ErrNoRows):
		const ins = `INSERT INTO pool_registrations (pool_id, member_id, status) VALUES (?, ?, ?)`
		res, err2 := tx.ExecContext(ctx, ins, poolID, memberID, model.RegistrationRegistered)
		if err2 != nil {
			return nil, "", mapLockErr(err2)
		}
		id, err2 := res.LastInsertId()
		if err2 != nil {
			return nil, "", err2
		}
		reg, err = scanRegistration(tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM pool_registrations WHERE id = ?`, id))
		if err != nil {
			return nil, "", err
		}
	default:
		return nil, "", mapLockErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, "", mapLockErr(err)
	}
	committed = true
	return reg, outcome, nil
}

// Withdraw moves a (pool, member) registration to WITHDRAWN and
// stamps withdrawn_at.  Withdrawing an already-withdrawn registration
// is a no-op; changed reports whether a write happened.
func (r *PoolRepo) Withdraw(ctx context.Context, poolID, memberID uint64) (reg *model.PoolRegistration, changed bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const sel = `SELECT ` + registrationColumns + ` FROM pool_registrations
	             WHERE pool_id = ? AND member_id = ? FOR UPDATE`
	reg, err = scanRegistration(tx.QueryRowContext(ctx, sel, poolID, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, false, mapLockErr(err)
	}
	if reg.Status != model.RegistrationWithdrawn {
		const up = `UPDATE pool_registrations
		            SET status = ?, withdrawn_at = UTC_TIMESTAMP(), last_updated = UTC_TIMESTAMP()
		            WHERE id = ?`
		if _, err := tx.ExecContext(ctx, up, model.RegistrationWithdrawn, reg.ID); err != nil {
			return nil, false, mapLockErr(err)
		}
		reg, err = scanRegistration(tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM pool_registrations WHERE id = ?`, reg.ID))
		if err != nil {
			return nil, false, err
		}
		changed = true
	}
	if err := tx.Commit(); err != nil {
		return nil, false, mapLockErr(err)
	}
	committed = true
	return reg, changed, nil
}

// Transition moves a registration to a new status under a row lock,
// validating the move against the registration lifecycle.  It returns
// the updated registration and the status it moved from.
func (r *PoolRepo) Transition(ctx context.Context, poolID, memberID uint64, to string) (reg *model.PoolRegistration, from string, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const sel = `SELECT ` + registrationColumns + ` FROM pool_registrations
	             WHERE pool_id = ? AND member_id = ? FOR UPDATE`
	reg, err = scanRegistration(tx.QueryRowContext(ctx, sel, poolID, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrRegistrationNotFound
	}
	if err != nil {
		return nil, "", mapLockErr(err)
	}
	from = reg.Status
	if terr := model.CheckTransition(from, to); terr != nil {
		return nil, "", errWithSentinel(ErrInvalidTransition, terr)
	}
	const up = `UPDATE pool_registrations SET status = ?, last_updated = UTC_TIMESTAMP() WHERE id = ?`
	if _, err := tx.ExecContext(ctx, up, to, reg.ID); err != nil {
		return nil, "", mapLockErr(err)
	}
	reg, err = scanRegistration(tx.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM pool_registrations WHERE id = ?`, reg.ID))
	if err != nil {
		return nil, "", err
	}
	if err := tx.Commit(); err != nil {
		return nil, "", mapLockErr(err)
	}
	committed = true
	return reg, from, nil
}

// ListByStatus returns a pool's registrations, optionally filtered to
// one status, ordered by registration time.  The query has no side
// effects.
func (r *PoolRepo) ListByStatus(ctx context.Context, poolID uint64, status string) ([]model.PoolRegistration, error) {
	q := `SELECT ` + registrationColumns + ` FROM pool_registrations WHERE pool_id = ?`
	args := []any{poolID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY registered_at, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	regs := make([]model.PoolRegistration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}
