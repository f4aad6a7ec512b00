package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rmcalister/rinkroster/internal/format"
	"github.com/rmcalister/rinkroster/internal/model"
)

// TeamInstanceRepo provides data access to team_instances,
// assignments and the substitutions log.  Instances are created only
// by the copy operation in Instantiate and mutated only through
// Confirm and Substitute; the substitution log is append-only.
type TeamInstanceRepo struct {
	db *sql.DB
}

// NewTeamInstanceRepo returns a TeamInstanceRepo bound to the given
// database.
func NewTeamInstanceRepo(db *sql.DB) *TeamInstanceRepo { return &TeamInstanceRepo{db: db} }

const assignmentColumns = `id, instance_id, position, member_id, is_substitute, availability, confirmed_at, substituted_at`

func scanAssignment(row interface{ Scan(...any) error }) (*model.Assignment, error) {
	var a model.Assignment
	var confirmedAt, substitutedAt sql.NullTime
	err := row.Scan(&a.ID, &a.InstanceID, &a.Position, &a.MemberID, &a.IsSubstitute,
		&a.Availability, &confirmedAt, &substitutedAt)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		a.ConfirmedAt = &t
	}
	if substitutedAt.Valid {
		t := substitutedAt.Time
		a.SubstitutedAt = &t
	}
	return &a, nil
}

// Instantiate copies a template's position slots into a new team
// instance for a booking.  The whole copy is one transaction: either
// every slot becomes an assignment or nothing is written.
//
// Guards, checked under the booking row lock:
//   - the template's booking format must match the target booking's
//     format (ErrFormatMismatch);
//   - every slot must be occupied (ErrTemplateIncomplete);
//   - the (booking, template) pair must not already be instantiated
//     (ErrAlreadyInstantiated);
//   - no slot occupant may already hold an assignment in another
//     instance of the booking (ErrMemberAlreadyAssigned).
//
// New assignments always start with availability PENDING.
func (r *TeamInstanceRepo) Instantiate(ctx context.Context, templateID, bookingID uint64) (*model.TeamInstance, error) {
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

	booking, err := getBookingForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, mapLockErr(err)
	}

	var templateBookingID uint64
	var templateName string
	err = tx.QueryRowContext(ctx,
		`SELECT booking_id, name FROM team_templates WHERE id = ? FOR UPDATE`,
		templateID).Scan(&templateBookingID, &templateName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, mapLockErr(err)
	}

	var templateFormat string
	if err := tx.QueryRowContext(ctx,
		`SELECT format FROM bookings WHERE id = ?`, templateBookingID).Scan(&templateFormat); err != nil {
		return nil, mapLockErr(err)
	}
	if templateFormat != booking.Format {
		return nil, ErrFormatMismatch
	}

	// Load the slots in canonical order and require a full team.
	order, err := format.Positions(format.Format(booking.Format))
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT position, member_id FROM template_positions WHERE template_id = ?`, templateID)
	if err != nil {
		return nil, mapLockErr(err)
	}
	occupants := make(map[string]uint64, len(order))
	for rows.Next() {
		var pos string
		var memberID sql.NullInt64
		if err := rows.Scan(&pos, &memberID); err != nil {
			rows.Close()
			return nil, err
		}
		if memberID.Valid {
			occupants[pos] = uint64(memberID.Int64)
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	seen := make(map[uint64]bool, len(order))
	for _, pos := range order {
		mid, ok := occupants[pos]
		if !ok {
			return nil, ErrTemplateIncomplete
		}
		if seen[mid] {
			return nil, ErrMemberAlreadyAssigned
		}
		seen[mid] = true
	}

	// No occupant may already be assigned elsewhere in this booking.
	for _, pos := range order {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM assignments a
			 JOIN team_instances ti ON ti.id = a.instance_id
			 WHERE ti.booking_id = ? AND a.member_id = ?`,
			bookingID, occupants[pos]).Scan(&n)
		if err != nil {
			return nil, mapLockErr(err)
		}
		if n > 0 {
			return nil, ErrMemberAlreadyAssigned
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO team_instances (booking_id, template_id, template_name) VALUES (?, ?, ?)`,
		bookingID, templateID, templateName)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrAlreadyInstantiated
		}
		return nil, mapLockErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	instanceID := uint64(id)

	insQ := `INSERT INTO assignments (instance_id, position, member_id, availability) VALUES `
	args := make([]any, 0, len(order)*4)
	for i, pos := range order {
		if i > 0 {
			insQ += ","
		}
		insQ += "(?, ?, ?, ?)"
		args = append(args, instanceID, pos, occupants[pos], model.AvailabilityPending)
	}
	if _, err := tx.ExecContext(ctx, insQ, args...); err != nil {
		return nil, mapLockErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapLockErr(err)
	}
	committed = true
	return r.GetByID(ctx, instanceID)
}

// GetByID returns an instance with its assignments (in canonical
// position order) and substitution log (oldest first), or
// ErrInstanceNotFound.
func (r *TeamInstanceRepo) GetByID(ctx context.Context, id uint64) (*model.TeamInstance, error) {
	const q = `SELECT id, booking_id, template_id, template_name, created_at
	           FROM team_instances WHERE id = ?`
	var ti model.TeamInstance
	err := r.db.QueryRowContext(ctx, q, id).Scan(&ti.ID, &ti.BookingID, &ti.TemplateID, &ti.TemplateName, &ti.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.fill(ctx, &ti); err != nil {
		return nil, err
	}
	return &ti, nil
}

func (r *TeamInstanceRepo) fill(ctx context.Context, ti *model.TeamInstance) error {
	var f string
	if err := r.db.QueryRowContext(ctx,
		`SELECT format FROM bookings WHERE id = ?`, ti.BookingID).Scan(&f); err != nil {
		return err
	}
	order, err := format.Positions(format.Format(f))
	if err != nil {
		return err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE instance_id = ?`, ti.ID)
	if err != nil {
		return err
	}
	byPos := make(map[string]model.Assignment)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			rows.Close()
			return err
		}
		byPos[a.Position] = *a
	}
	if err := rows.Close(); err != nil {
		return err
	}
	ti.Assignments = make([]model.Assignment, 0, len(order))
	for _, pos := range order {
		if a, ok := byPos[pos]; ok {
			ti.Assignments = append(ti.Assignments, a)
		}
	}

	srows, err := r.db.QueryContext(ctx,
		`SELECT id, instance_id, position, original_member_id, substitute_member_id, actor_id, reason, created_at
		 FROM substitutions WHERE instance_id = ? ORDER BY id`, ti.ID)
	if err != nil {
		return err
	}
	defer srows.Close()
	ti.Substitutions = make([]model.Substitution, 0)
	for srows.Next() {
		var s model.Substitution
		if err := srows.Scan(&s.ID, &s.InstanceID, &s.Position, &s.OriginalMemberID,
			&s.SubstituteMemberID, &s.ActorID, &s.Reason, &s.CreatedAt); err != nil {
			return err
		}
		ti.Substitutions = append(ti.Substitutions, s)
	}
	return srows.Err()
}

// ListByBooking returns all instances of a booking with assignments
// and substitution logs populated.
func (r *TeamInstanceRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.TeamInstance, error) {
	const q = `SELECT id, booking_id, template_id, template_name, created_at
	           FROM team_instances WHERE booking_id = ? ORDER BY template_name`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	instances := make([]model.TeamInstance, 0)
	for rows.Next() {
		var ti model.TeamInstance
		if err := rows.Scan(&ti.ID, &ti.BookingID, &ti.TemplateID, &ti.TemplateName, &ti.CreatedAt); err != nil {
			return nil, err
		}
		instances = append(instances, ti)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range instances {
		if err := r.fill(ctx, &instances[i]); err != nil {
			return nil, err
		}
	}
	return instances, nil
}

// GetAssignment returns one assignment row or ErrAssignmentNotFound.
func (r *TeamInstanceRepo) GetAssignment(ctx context.Context, id uint64) (*model.Assignment, error) {
	const q = `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = ?`
	a, err := scanAssignment(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	return a, err
}

// Confirm records a member's availability answer on an assignment.
// Confirmation is one-way: once confirmed_at is set the row rejects
// any further confirm with ErrAlreadyConfirmed, whichever way the
// first answer went.  When expectMember is non-nil the row's current
// occupant must match it, which keeps a self-service confirm from
// racing a substitution; a mismatch returns ErrForbidden.
func (r *TeamInstanceRepo) Confirm(ctx context.Context, assignmentID uint64, availability string, expectMember *uint64) (*model.Assignment, error) {
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
	const sel = `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = ? FOR UPDATE`
	a, err := scanAssignment(tx.QueryRowContext(ctx, sel, assignmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, mapLockErr(err)
	}
	if expectMember != nil && a.MemberID != *expectMember {
		return nil, ErrForbidden
	}
	if a.Confirmed() {
		return nil, ErrAlreadyConfirmed
	}
	const up = `UPDATE assignments SET availability = ?, confirmed_at = UTC_TIMESTAMP() WHERE id = ?`
	if _, err := tx.ExecContext(ctx, up, availability, assignmentID); err != nil {
		return nil, mapLockErr(err)
	}
	a, err = scanAssignment(tx.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, assignmentID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapLockErr(err)
	}
	committed = true
	return a, nil
}

// Substitute replaces an assignment's occupant with a new member and
// appends exactly one entry to the owning instance's substitution
// log, all in one transaction.  The assignment keeps its position but
// resets to PENDING with is_substitute set; confirmed_at is cleared
// so the incoming member answers for themselves.  Substitution is
// permitted regardless of the outgoing member's confirmation state.
func (r *TeamInstanceRepo) Substitute(ctx context.Context, assignmentID, newMemberID, actorID uint64, reason string) (*model.Assignment, *model.Substitution, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const sel = `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = ? FOR UPDATE`
	outgoing, err := scanAssignment(tx.QueryRowContext(ctx, sel, assignmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, nil, mapLockErr(err)
	}

	var bookingID uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT booking_id FROM team_instances WHERE id = ?`, outgoing.InstanceID).Scan(&bookingID); err != nil {
		return nil, nil, mapLockErr(err)
	}
	var n int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments a
		 JOIN team_instances ti ON ti.id = a.instance_id
		 WHERE ti.booking_id = ? AND a.member_id = ?`, bookingID, newMemberID).Scan(&n)
	if err != nil {
		return nil, nil, mapLockErr(err)
	}
	if n > 0 {
		return nil, nil, ErrMemberAlreadyAssigned
	}

	const up = `UPDATE assignments
	            SET member_id = ?, is_substitute = TRUE, availability = ?,
	                confirmed_at = NULL, substituted_at = UTC_TIMESTAMP()
	            WHERE id = ?`
	if _, err := tx.ExecContext(ctx, up, newMemberID, model.AvailabilityPending, assignmentID); err != nil {
		if isForeignKeyErr(err) {
			return nil, nil, ErrMemberNotFound
		}
		return nil, nil, mapLockErr(err)
	}

	const ins = `INSERT INTO substitutions
	             (instance_id, position, original_member_id, substitute_member_id, actor_id, reason)
	             VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, outgoing.InstanceID, outgoing.Position,
		outgoing.MemberID, newMemberID, actorID, reason)
	if err != nil {
		return nil, nil, mapLockErr(err)
	}
	logID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, err
	}

	updated, err := scanAssignment(tx.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, assignmentID))
	if err != nil {
		return nil, nil, err
	}
	var entry model.Substitution
	err = tx.QueryRowContext(ctx,
		`SELECT id, instance_id, position, original_member_id, substitute_member_id, actor_id, reason, created_at
		 FROM substitutions WHERE id = ?`, logID).Scan(&entry.ID, &entry.InstanceID, &entry.Position,
		&entry.OriginalMemberID, &entry.SubstituteMemberID, &entry.ActorID, &entry.Reason, &entry.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, mapLockErr(err)
	}
	committed = true
	return updated, &entry, nil
}

// CountInstances reports how many team instances exist for a booking.
func (r *TeamInstanceRepo) CountInstances(ctx context.Context, bookingID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_instances WHERE booking_id = ?`, bookingID).Scan(&n)
	return n, err
}
