package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rmcalister/rinkroster/internal/format"
	"github.com/rmcalister/rinkroster/internal/model"
)

// TeamTemplateRepo provides data access to team_templates and
// template_positions.  A template's slot rows are created once, one
// per position of the booking's format, and then updated in place;
// the repository never rebuilds the slot set wholesale.
type TeamTemplateRepo struct {
	db *sql.DB
}

// NewTeamTemplateRepo returns a TeamTemplateRepo bound to the given
// database.
func NewTeamTemplateRepo(db *sql.DB) *TeamTemplateRepo { return &TeamTemplateRepo{db: db} }

// Create inserts a template under a booking together with one empty
// slot row per position of the booking's format.  Template names are
// unique per booking; duplicates surface as ErrDuplicateTemplateName.
func (r *TeamTemplateRepo) Create(ctx context.Context, bookingID uint64, name string) (*model.TeamTemplate, error) {
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
	positions, err := format.Positions(format.Format(booking.Format))
	if err != nil {
		return nil, err
	}
	const ins = `INSERT INTO team_templates (booking_id, name) VALUES (?, ?)`
	res, err := tx.ExecContext(ctx, ins, bookingID, name)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateTemplateName
		}
		return nil, mapLockErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	templateID := uint64(id)
	// One row per position of the format, all initially unoccupied.
	slotQ := `INSERT INTO template_positions (template_id, position) VALUES `
	args := make([]any, 0, len(positions)*2)
	for i, p := range positions {
		if i > 0 {
			slotQ += ","
		}
		slotQ += "(?, ?)"
		args = append(args, templateID, p)
	}
	if _, err := tx.ExecContext(ctx, slotQ, args...); err != nil {
		return nil, mapLockErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapLockErr(err)
	}
	committed = true
	return r.GetByID(ctx, templateID)
}

// GetByID returns a template with its ordered slot rows, or
// ErrTemplateNotFound.
func (r *TeamTemplateRepo) GetByID(ctx context.Context, id uint64) (*model.TeamTemplate, error) {
	const q = `SELECT id, booking_id, name, created_at, updated_at FROM team_templates WHERE id = ?`
	var t model.TeamTemplate
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.BookingID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Positions, err = r.positions(ctx, t.ID, t.BookingID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// positions loads a template's slots ordered by the format's
// canonical position order.
func (r *TeamTemplateRepo) positions(ctx context.Context, templateID, bookingID uint64) ([]model.Position, error) {
	const q = `SELECT tp.id, tp.template_id, tp.position, tp.member_id
	           FROM template_positions tp
	           WHERE tp.template_id = ?`
	rows, err := r.db.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byName := make(map[string]model.Position)
	for rows.Next() {
		var p model.Position
		var memberID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.TemplateID, &p.Position, &memberID); err != nil {
			return nil, err
		}
		if memberID.Valid {
			mid := uint64(memberID.Int64)
			p.MemberID = &mid
		}
		byName[p.Position] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var f string
	if err := r.db.QueryRowContext(ctx, `SELECT format FROM bookings WHERE id = ?`, bookingID).Scan(&f); err != nil {
		return nil, err
	}
	order, err := format.Positions(format.Format(f))
	if err != nil {
		return nil, err
	}
	out := make([]model.Position, 0, len(order))
	for _, name := range order {
		if p, ok := byName[name]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListByBooking returns all templates under a booking, with slots,
// ordered by name.
func (r *TeamTemplateRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.TeamTemplate, error) {
	const q = `SELECT id, booking_id, name, created_at, updated_at
	           FROM team_templates WHERE booking_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	templates := make([]model.TeamTemplate, 0)
	for rows.Next() {
		var t model.TeamTemplate
		if err := rows.Scan(&t.ID, &t.BookingID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range templates {
		templates[i].Positions, err = r.positions(ctx, templates[i].ID, templates[i].BookingID)
		if err != nil {
			return nil, err
		}
	}
	return templates, nil
}

// AssignPosition places a member into one slot of a template,
// overwriting any prior occupant of that slot only.  The slot rows
// were created with the template, so an unknown position name simply
// matches no row and surfaces as ErrInvalidPosition.
func (r *TeamTemplateRepo) AssignPosition(ctx context.Context, templateID uint64, position string, memberID uint64) error {
	return r.setPosition(ctx, templateID, position, &memberID)
}

// ClearPosition empties one slot of a template.
func (r *TeamTemplateRepo) ClearPosition(ctx context.Context, templateID uint64, position string) error {
	return r.setPosition(ctx, templateID, position, nil)
}

func (r *TeamTemplateRepo) setPosition(ctx context.Context, templateID uint64, position string, memberID *uint64) error {
	if _, err := r.GetByID(ctx, templateID); err != nil {
		return err
	}
	const q = `UPDATE template_positions SET member_id = ? WHERE template_id = ? AND position = ?`
	var mid any
	if memberID != nil {
		mid = *memberID
	}
	res, err := r.db.ExecContext(ctx, q, mid, templateID, position)
	if err != nil {
		if isForeignKeyErr(err) {
			return ErrMemberNotFound
		}
		return mapLockErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// No slot row: either the position name is foreign to the
		// format or the occupant is unchanged.  Distinguish the two.
		var exists int
		err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM template_positions WHERE template_id = ? AND position = ?`,
			templateID, position).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrInvalidPosition
		}
	}
	const touch = `UPDATE team_templates SET updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err = r.db.ExecContext(ctx, touch, templateID)
	return err
}
