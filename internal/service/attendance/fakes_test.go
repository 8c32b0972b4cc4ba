package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
)

var errStore = errors.New("store unavailable")

// stepClock is a settable clock.
type stepClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = t
}

// memRepo is an in-memory attendance.AttendanceRepository applying the same write guards as SQL.
type memRepo struct {
	mu      sync.Mutex
	seq     int
	records map[string]attendance.Attendance

	// beforeWrite runs before guarded check-in/check-out writes, outside the lock
	beforeWrite          func()
	failUpdateCompletion error
	failList             error
	updateCompletionHits int
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]attendance.Attendance)}
}

func memKey(userID string, date calendar.DayKey) string {
	return userID + "|" + date.String()
}

func (m *memRepo) nextID() string {
	m.seq++
	return fmt.Sprintf("att-%03d", m.seq)
}

func (m *memRepo) put(a attendance.Attendance) attendance.Attendance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = m.nextID()
	}
	m.records[memKey(a.UserID, a.Date)] = a
	return a
}

func (m *memRepo) get(userID string, date calendar.DayKey) (attendance.Attendance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[memKey(userID, date)]
	return a, ok
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memRepo) snapshot() map[string]attendance.Attendance {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]attendance.Attendance, len(m.records))
	for k, v := range m.records {
		snap[k] = v
	}
	return snap
}

func (m *memRepo) restore(snap map[string]attendance.Attendance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = snap
}

func (m *memRepo) GetByUserAndDate(ctx context.Context, userID string, date calendar.DayKey) (*attendance.Attendance, error) {
	a, ok := m.get(userID, date)
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memRepo) CheckIn(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(a.UserID, a.Date)
	now := time.Now()
	if existing, ok := m.records[key]; ok {
		if existing.CheckIn != nil || existing.CheckOut != nil || existing.Status.IsOverride() {
			return attendance.Attendance{}, attendance.ErrStaleRecord
		}
		existing.CheckIn = a.CheckIn
		existing.Status = a.Status
		existing.WorkMode = a.WorkMode
		existing.UpdatedAt = now
		m.records[key] = existing
		return existing, nil
	}

	a.ID = m.nextID()
	a.CreatedAt = now
	a.UpdatedAt = now
	m.records[key] = a
	return a, nil
}

func (m *memRepo) CheckOut(ctx context.Context, u attendance.CheckOutUpdate) (attendance.Attendance, error) {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(u.UserID, u.Date)
	existing, ok := m.records[key]
	if !ok || existing.CheckIn == nil || existing.CheckOut != nil || existing.Status.IsOverride() {
		return attendance.Attendance{}, attendance.ErrStaleRecord
	}
	out := u.CheckOut
	existing.CheckOut = &out
	existing.WorkingHours = decimal.NewNullDecimal(u.WorkingHours)
	existing.Status = u.Status
	if u.WorkMode != nil {
		existing.WorkMode = *u.WorkMode
	}
	existing.UpdatedAt = time.Now()
	m.records[key] = existing
	return existing, nil
}

func (m *memRepo) ListByDate(ctx context.Context, date calendar.DayKey, userIDs []string) ([]attendance.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Attendance
	for _, id := range userIDs {
		if a, ok := m.records[memKey(id, date)]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) BulkCreateAbsences(ctx context.Context, date calendar.DayKey, userIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created int64
	for _, id := range userIDs {
		key := memKey(id, date)
		if _, ok := m.records[key]; ok {
			continue
		}
		m.records[key] = attendance.Attendance{
			ID:       m.nextID(),
			UserID:   id,
			Date:     date,
			Status:   attendance.StatusAbsent,
			WorkMode: attendance.WorkModeOffice,
		}
		created++
	}
	return created, nil
}

func (m *memRepo) UpdateCompletion(ctx context.Context, id string, hours decimal.Decimal, status attendance.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCompletionHits++
	if m.failUpdateCompletion != nil {
		return m.failUpdateCompletion
	}
	for key, a := range m.records {
		if a.ID != id {
			continue
		}
		if !a.IsComplete() || a.Status.IsOverride() {
			return attendance.ErrStaleRecord
		}
		a.WorkingHours = decimal.NewNullDecimal(hours)
		a.Status = status
		m.records[key] = a
		return nil
	}
	return attendance.ErrStaleRecord
}

func (m *memRepo) UpsertOverride(ctx context.Context, userID string, date calendar.DayKey, status attendance.Status) (attendance.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(userID, date)
	a, ok := m.records[key]
	if !ok {
		a = attendance.Attendance{ID: m.nextID(), UserID: userID, Date: date, WorkMode: attendance.WorkModeOffice}
	}
	a.Status = status
	m.records[key] = a
	return a, nil
}

func (m *memRepo) List(ctx context.Context, filter attendance.ListFilter) ([]attendance.Attendance, int64, error) {
	if m.failList != nil {
		return nil, 0, m.failList
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []attendance.Attendance
	for _, a := range m.records {
		d := a.Date.String()
		if d < filter.From || d > filter.To {
			continue
		}
		if filter.Status != attendance.StatusFilterAll && string(a.Status) != filter.Status {
			continue
		}
		if filter.UserIDs != nil && !contains(filter.UserIDs, a.UserID) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date != matched[j].Date {
			return matched[i].Date > matched[j].Date
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := min(filter.Offset(), len(matched))
	end := min(start+filter.PageSize, len(matched))
	return matched[start:end], total, nil
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// fakeDirectory is an in-memory employee.Directory.
type fakeDirectory struct {
	profiles map[string]employee.Profile
	err      error
	calls    int
}

func newFakeDirectory(profiles ...employee.Profile) *fakeDirectory {
	d := &fakeDirectory{profiles: make(map[string]employee.Profile)}
	for _, p := range profiles {
		d.profiles[p.UserID] = p
	}
	return d
}

func (d *fakeDirectory) GetProfile(ctx context.Context, userID string) (employee.Profile, error) {
	d.calls++
	if d.err != nil {
		return employee.Profile{}, d.err
	}
	p, ok := d.profiles[userID]
	if !ok {
		return employee.Profile{}, employee.ErrEmployeeNotFound
	}
	return p, nil
}

func (d *fakeDirectory) GetEmploymentTypes(ctx context.Context, userIDs []string) (map[string]employee.EmploymentType, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]employee.EmploymentType)
	for _, id := range userIDs {
		if p, ok := d.profiles[id]; ok && p.EmploymentType != "" {
			out[id] = p.EmploymentType
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListAttendanceEligible(ctx context.Context) ([]string, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	var ids []string
	for id, p := range d.profiles {
		if p.Role.RequiresAttendance() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// fakeTx restores the repository when fn fails.
type fakeTx struct {
	repo    *memRepo
	commits int
	aborts  int
}

func (t *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.repo.snapshot()
	if err := fn(ctx); err != nil {
		t.repo.restore(snap)
		t.aborts++
		return err
	}
	t.commits++
	return nil
}

// fakeLocker allows one holder per day.
type fakeLocker struct {
	mu   sync.Mutex
	held map[calendar.DayKey]bool
	fail error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[calendar.DayKey]bool)}
}

func (l *fakeLocker) Acquire(ctx context.Context, date calendar.DayKey) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	if l.held[date] {
		return nil, attendance.ErrSweepInProgress
	}
	l.held[date] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, date)
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []attendance.Event
}

func (p *recordingPublisher) Publish(e attendance.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []attendance.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]attendance.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
