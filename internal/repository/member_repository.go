package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rmcalister/rinkroster/internal/model"
)

// MemberRepo provides data access to the members table.  Members
// combine the club directory entry with account credentials, so this
// repository also backs authentication lookups.
type MemberRepo struct {
	db *sql.DB
}

// NewMemberRepo returns a MemberRepo bound to the given database.
func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{db: db} }

const memberColumns = `id, first_name, last_name, email, password_hash, role, status, created_at, updated_at`

func scanMember(row interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.PasswordHash,
		&m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new member.  The email column carries a unique
// index; duplicate addresses surface as ErrEmailTaken.
func (r *MemberRepo) Create(ctx context.Context, m *model.Member) error {
	const q = `INSERT INTO members (first_name, last_name, email, password_hash, role, status)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, m.FirstName, m.LastName, m.Email, m.PasswordHash, m.Role, m.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailTaken
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	const sel = `SELECT ` + memberColumns + ` FROM members WHERE id = ?`
	got, err := scanMember(r.db.QueryRowContext(ctx, sel, m.ID))
	if err != nil {
		return err
	}
	*m = *got
	return nil
}

// GetByID returns one member or ErrMemberNotFound.
func (r *MemberRepo) GetByID(ctx context.Context, id uint64) (*model.Member, error) {
	const q = `SELECT ` + memberColumns + ` FROM members WHERE id = ?`
	m, err := scanMember(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	return m, err
}

// GetByEmail returns the member holding the given sign-in address or
// ErrMemberNotFound.
func (r *MemberRepo) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	const q = `SELECT ` + memberColumns + ` FROM members WHERE email = ?`
	m, err := scanMember(r.db.QueryRowContext(ctx, q, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	return m, err
}

// List returns all members ordered by last then first name.  When
// status is non-empty only members with that status are returned.
func (r *MemberRepo) List(ctx context.Context, status string) ([]model.Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members`
	args := []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY last_name, first_name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	members := make([]model.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// UpdateStatus changes a member's membership status.  Returns
// ErrMemberNotFound when the id does not resolve.
func (r *MemberRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE members SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing row from an unchanged status.
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

// UpdateRole promotes or demotes a member's account role.
func (r *MemberRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	const q = `UPDATE members SET role = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, role, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}
