package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rmcalister/rinkroster/internal/format"
	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/queue"
	"github.com/rmcalister/rinkroster/internal/repository"
)

// memStore is an in-memory implementation of every store interface
// the services depend on.  It mirrors the contracts of the MySQL
// repositories (sentinel errors included) so service behaviour can be
// exercised without a database.
type memStore struct {
	mu sync.Mutex

	nextID uint64

	members       map[uint64]*model.Member
	bookings      map[uint64]*model.Booking
	pools         map[uint64]*model.Pool
	registrations map[uint64]*model.PoolRegistration
	templates     map[uint64]*model.TeamTemplate
	instances     map[uint64]*model.TeamInstance
	assignments   map[uint64]*model.Assignment
	substitutions []model.Substitution
}

func newMemStore() *memStore {
	return &memStore{
		members:       map[uint64]*model.Member{},
		bookings:      map[uint64]*model.Booking{},
		pools:         map[uint64]*model.Pool{},
		registrations: map[uint64]*model.PoolRegistration{},
		templates:     map[uint64]*model.TeamTemplate{},
		instances:     map[uint64]*model.TeamInstance{},
		assignments:   map[uint64]*model.Assignment{},
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addMember(status string) *model.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := &model.Member{ID: m.id(), FirstName: "Test", LastName: "Member", Status: status, Role: model.RoleMember}
	m.members[mem.ID] = mem
	return mem
}

func (m *memStore) addBooking(f format.Format) *model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &model.Booking{ID: m.id(), Format: string(f), BookedOn: time.Now().UTC().AddDate(0, 0, 7)}
	m.bookings[b.ID] = b
	return b
}

// MemberStore

func (m *memStore) GetByIDMember(ctx context.Context, id uint64) (*model.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	cp := *mem
	return &cp, nil
}

// memberDirectory adapts memStore to the MemberStore interface
// without colliding with the instance GetByID method.
type memberDirectory struct{ *memStore }

func (d memberDirectory) GetByID(ctx context.Context, id uint64) (*model.Member, error) {
	return d.GetByIDMember(ctx, id)
}

// PoolStore

func (m *memStore) Create(ctx context.Context, bookingID uint64, autoCloseAt *time.Time) (*model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[bookingID]; !ok {
		return nil, repository.ErrBookingNotFound
	}
	for _, p := range m.pools {
		if p.BookingID == bookingID {
			return nil, repository.ErrPoolExists
		}
	}
	p := &model.Pool{ID: m.id(), BookingID: bookingID, IsOpen: true, AutoCloseAt: autoCloseAt, CreatedAt: time.Now().UTC()}
	m.pools[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memStore) GetByIDPool(id uint64) (*model.Pool, error) {
	p, ok := m.pools[id]
	if !ok {
		return nil, repository.ErrPoolNotFound
	}
	if p.IsOpen && p.AutoCloseAt != nil && !p.AutoCloseAt.After(time.Now().UTC()) {
		p.IsOpen = false
		now := time.Now().UTC()
		p.ClosedAt = &now
	}
	cp := *p
	return &cp, nil
}

type poolDirectory struct{ *memStore }

func (d poolDirectory) GetByID(ctx context.Context, id uint64) (*model.Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.GetByIDPool(id)
}

func (d poolDirectory) GetByBooking(ctx context.Context, bookingID uint64) (*model.Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pools {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPoolNotFound
}

func (d poolDirectory) Create(ctx context.Context, bookingID uint64, autoCloseAt *time.Time) (*model.Pool, error) {
	return d.memStore.Create(ctx, bookingID, autoCloseAt)
}

func (d poolDirectory) Close(ctx context.Context, poolID uint64) (*model.Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[poolID]
	if !ok {
		return nil, repository.ErrPoolNotFound
	}
	if p.IsOpen {
		p.IsOpen = false
		now := time.Now().UTC()
		p.ClosedAt = &now
	}
	cp := *p
	return &cp, nil
}

func (d poolDirectory) Register(ctx context.Context, poolID, memberID uint64) (*model.PoolRegistration, repository.RegisterOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.GetByIDPool(poolID)
	if err != nil {
		return nil, "", err
	}
	if !p.IsOpen {
		return nil, "", repository.ErrPoolClosed
	}
	for _, reg := range d.registrations {
		if reg.PoolID == poolID && reg.MemberID == memberID {
			if reg.Status != model.RegistrationWithdrawn {
				cp := *reg
				return &cp, repository.RegisterUnchanged, nil
			}
			reg.Status = model.RegistrationRegistered
			reg.WithdrawnAt = nil
			reg.LastUpdated = time.Now().UTC()
			cp := *reg
			return &cp, repository.RegisterReactivated, nil
		}
	}
	now := time.Now().UTC()
	reg := &model.PoolRegistration{
		ID: d.id(), PoolID: poolID, MemberID: memberID,
		Status: model.RegistrationRegistered, RegisteredAt: now, LastUpdated: now,
	}
	d.registrations[reg.ID] = reg
	cp := *reg
	return &cp, repository.RegisterCreated, nil
}

func (d poolDirectory) Withdraw(ctx context.Context, poolID, memberID uint64) (*model.PoolRegistration, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, reg := range d.registrations {
		if reg.PoolID == poolID && reg.MemberID == memberID {
			if reg.Status == model.RegistrationWithdrawn {
				cp := *reg
				return &cp, false, nil
			}
			reg.Status = model.RegistrationWithdrawn
			now := time.Now().UTC()
			reg.WithdrawnAt = &now
			reg.LastUpdated = now
			cp := *reg
			return &cp, true, nil
		}
	}
	return nil, false, repository.ErrRegistrationNotFound
}

func (d poolDirectory) Transition(ctx context.Context, poolID, memberID uint64, to string) (*model.PoolRegistration, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, reg := range d.registrations {
		if reg.PoolID == poolID && reg.MemberID == memberID {
			from := reg.Status
			if err := model.CheckTransition(from, to); err != nil {
				return nil, "", repository.ErrInvalidTransition
			}
			reg.Status = to
			reg.LastUpdated = time.Now().UTC()
			cp := *reg
			return &cp, from, nil
		}
	}
	return nil, "", repository.ErrRegistrationNotFound
}

func (d poolDirectory) ListByStatus(ctx context.Context, poolID uint64, status string) ([]model.PoolRegistration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.PoolRegistration{}
	for _, reg := range d.registrations {
		if reg.PoolID == poolID && (status == "" || reg.Status == status) {
			out = append(out, *reg)
		}
	}
	return out, nil
}

// TemplateStore

type templateDirectory struct{ *memStore }

func (d templateDirectory) Create(ctx context.Context, bookingID uint64, name string) (*model.TeamTemplate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bookings[bookingID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	for _, t := range d.templates {
		if t.BookingID == bookingID && t.Name == name {
			return nil, repository.ErrDuplicateTemplateName
		}
	}
	order, err := format.Positions(format.Format(b.Format))
	if err != nil {
		return nil, err
	}
	t := &model.TeamTemplate{ID: d.id(), BookingID: bookingID, Name: name, CreatedAt: time.Now().UTC()}
	for _, pos := range order {
		t.Positions = append(t.Positions, model.Position{ID: d.id(), TemplateID: t.ID, Position: pos})
	}
	d.templates[t.ID] = t
	cp := *t
	return &cp, nil
}

func (d templateDirectory) GetByID(ctx context.Context, id uint64) (*model.TeamTemplate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.templates[id]
	if !ok {
		return nil, repository.ErrTemplateNotFound
	}
	cp := *t
	cp.Positions = append([]model.Position(nil), t.Positions...)
	return &cp, nil
}

func (d templateDirectory) ListByBooking(ctx context.Context, bookingID uint64) ([]model.TeamTemplate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.TeamTemplate{}
	for _, t := range d.templates {
		if t.BookingID == bookingID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (d templateDirectory) AssignPosition(ctx context.Context, templateID uint64, position string, memberID uint64) error {
	return d.setPosition(templateID, position, &memberID)
}

func (d templateDirectory) ClearPosition(ctx context.Context, templateID uint64, position string) error {
	return d.setPosition(templateID, position, nil)
}

func (d templateDirectory) setPosition(templateID uint64, position string, memberID *uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.templates[templateID]
	if !ok {
		return repository.ErrTemplateNotFound
	}
	for i := range t.Positions {
		if t.Positions[i].Position == position {
			t.Positions[i].MemberID = memberID
			return nil
		}
	}
	return repository.ErrInvalidPosition
}

// InstanceStore / AssignmentStore

type instanceDirectory struct{ *memStore }

func (d instanceDirectory) Instantiate(ctx context.Context, templateID, bookingID uint64) (*model.TeamInstance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bookings[bookingID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	t, ok := d.templates[templateID]
	if !ok {
		return nil, repository.ErrTemplateNotFound
	}
	tb := d.bookings[t.BookingID]
	if tb.Format != b.Format {
		return nil, repository.ErrFormatMismatch
	}
	for _, ti := range d.instances {
		if ti.BookingID == bookingID && ti.TemplateID == templateID {
			return nil, repository.ErrAlreadyInstantiated
		}
	}
	seen := map[uint64]bool{}
	for _, slot := range t.Positions {
		if slot.MemberID == nil {
			return nil, repository.ErrTemplateIncomplete
		}
		if seen[*slot.MemberID] {
			return nil, repository.ErrMemberAlreadyAssigned
		}
		seen[*slot.MemberID] = true
		for _, a := range d.assignments {
			if owner := d.instances[a.InstanceID]; owner != nil && owner.BookingID == bookingID && a.MemberID == *slot.MemberID {
				return nil, repository.ErrMemberAlreadyAssigned
			}
		}
	}
	ti := &model.TeamInstance{
		ID: d.id(), BookingID: bookingID, TemplateID: templateID,
		TemplateName: t.Name, CreatedAt: time.Now().UTC(),
	}
	d.instances[ti.ID] = ti
	for _, slot := range t.Positions {
		a := &model.Assignment{
			ID: d.id(), InstanceID: ti.ID, Position: slot.Position,
			MemberID: *slot.MemberID, Availability: model.AvailabilityPending,
		}
		d.assignments[a.ID] = a
	}
	return d.getInstance(ti.ID)
}

func (d instanceDirectory) getInstance(id uint64) (*model.TeamInstance, error) {
	ti, ok := d.instances[id]
	if !ok {
		return nil, repository.ErrInstanceNotFound
	}
	cp := *ti
	cp.Assignments = nil
	cp.Substitutions = nil
	for _, a := range d.assignments {
		if a.InstanceID == id {
			cp.Assignments = append(cp.Assignments, *a)
		}
	}
	sort.Slice(cp.Assignments, func(i, j int) bool { return cp.Assignments[i].ID < cp.Assignments[j].ID })
	for _, s := range d.substitutions {
		if s.InstanceID == id {
			cp.Substitutions = append(cp.Substitutions, s)
		}
	}
	return &cp, nil
}

func (d instanceDirectory) GetByID(ctx context.Context, id uint64) (*model.TeamInstance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getInstance(id)
}

func (d instanceDirectory) ListByBooking(ctx context.Context, bookingID uint64) ([]model.TeamInstance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.TeamInstance{}
	for id, ti := range d.instances {
		if ti.BookingID == bookingID {
			cp, err := d.getInstance(id)
			if err != nil {
				return nil, err
			}
			out = append(out, *cp)
		}
	}
	return out, nil
}

func (d instanceDirectory) GetAssignment(ctx context.Context, id uint64) (*model.Assignment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.assignments[id]
	if !ok {
		return nil, repository.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (d instanceDirectory) Confirm(ctx context.Context, assignmentID uint64, availability string, expectMember *uint64) (*model.Assignment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.assignments[assignmentID]
	if !ok {
		return nil, repository.ErrAssignmentNotFound
	}
	if expectMember != nil && a.MemberID != *expectMember {
		return nil, repository.ErrForbidden
	}
	if a.ConfirmedAt != nil {
		return nil, repository.ErrAlreadyConfirmed
	}
	now := time.Now().UTC()
	a.Availability = availability
	a.ConfirmedAt = &now
	cp := *a
	return &cp, nil
}

func (d instanceDirectory) Substitute(ctx context.Context, assignmentID, newMemberID, actorID uint64, reason string) (*model.Assignment, *model.Substitution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.assignments[assignmentID]
	if !ok {
		return nil, nil, repository.ErrAssignmentNotFound
	}
	owner := d.instances[a.InstanceID]
	for _, other := range d.assignments {
		if o := d.instances[other.InstanceID]; o != nil && o.BookingID == owner.BookingID && other.MemberID == newMemberID {
			return nil, nil, repository.ErrMemberAlreadyAssigned
		}
	}
	now := time.Now().UTC()
	entry := model.Substitution{
		ID: d.id(), InstanceID: a.InstanceID, Position: a.Position,
		OriginalMemberID: a.MemberID, SubstituteMemberID: newMemberID,
		ActorID: actorID, Reason: reason, CreatedAt: now,
	}
	a.MemberID = newMemberID
	a.IsSubstitute = true
	a.Availability = model.AvailabilityPending
	a.ConfirmedAt = nil
	a.SubstitutedAt = &now
	d.substitutions = append(d.substitutions, entry)
	cp := *a
	return &cp, &entry, nil
}

// recordingAudit captures audit calls for assertions.
type recordingAudit struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingAudit) LogCreate(ctx context.Context, entityType string, entityID, actorID uint64, description string) {
	r.record("create", entityType)
}

func (r *recordingAudit) LogUpdate(ctx context.Context, entityType string, entityID, actorID uint64, description string, changes map[string]string) {
	r.record("update", entityType)
}

func (r *recordingAudit) LogDelete(ctx context.Context, entityType string, entityID, actorID uint64, description string) {
	r.record("delete", entityType)
}

func (r *recordingAudit) record(action, entityType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, action+":"+entityType)
}

func (r *recordingAudit) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu          sync.Mutex
	registered  []queue.PoolRegisteredEvent
	substituted []queue.TeamSubstitutedEvent
}

func (r *recordingPublisher) PublishPoolRegistered(ctx context.Context, ev queue.PoolRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, ev)
	return nil
}

func (r *recordingPublisher) PublishTeamSubstituted(ctx context.Context, ev queue.TeamSubstitutedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.substituted = append(r.substituted, ev)
	return nil
}
