package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory implementation of every
// repository interface. It backs tests and the demo mode; Reserve holds the
// single lock across the re-check and the flip, which satisfies the atomic
// read-then-commit contract.
type MemoryRepository struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]*Patient
	providers    map[uuid.UUID]*Provider
	slots        map[uuid.UUID]map[string]*ScheduleSlot // provider -> slotKey
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]*Patient),
		providers:    make(map[uuid.UUID]*Provider),
		slots:        make(map[uuid.UUID]map[string]*ScheduleSlot),
		appointments: make(map[uuid.UUID]*Appointment),
		nextEventID:  1,
	}
}

// Seeding helpers

func (r *MemoryRepository) AddProvider(p Provider) *Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := p
	r.providers[cp.ID] = &cp
	return &cp
}

func (r *MemoryRepository) AddPatient(p Patient) *Patient {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := p
	r.patients[cp.ID] = &cp
	return &cp
}

func (r *MemoryRepository) AddSlot(s ScheduleSlot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey, ok := r.slots[s.ProviderID]
	if !ok {
		byKey = make(map[string]*ScheduleSlot)
		r.slots[s.ProviderID] = byKey
	}
	cp := s
	byKey[slotKey(s.Date, s.Start)] = &cp
}

// PatientRepository

func (r *MemoryRepository) FindPatient(ctx context.Context, q PatientQuery) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q.Name == "" && q.DOB.IsZero() && q.Phone == "" {
		return nil, ErrPatientNotFound
	}

	for _, p := range r.patients {
		if q.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Name)) {
			continue
		}
		if !q.DOB.IsZero() && !p.DOB.Equal(q.DOB) {
			continue
		}
		if q.Phone != "" && p.Phone != q.Phone {
			continue
		}
		cp := *p
		return &cp, nil
	}

	return nil, ErrPatientNotFound
}

func (r *MemoryRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) CreatePatient(ctx context.Context, np NewPatient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	p := &Patient{
		ID:         uuid.New(),
		Name:       np.Name,
		DOB:        np.DOB,
		Phone:      np.Phone,
		Email:      np.Email,
		Insurance:  np.Insurance,
		VisitCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.patients[p.ID] = p

	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) UpdateInsurance(ctx context.Context, id uuid.UUID, ins Insurance) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.Insurance = ins
	p.UpdatedAt = time.Now()

	cp := *p
	return &cp, nil
}

// ProviderDirectory

func (r *MemoryRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	cp := *p
	return &cp, nil
}

// ScheduleRepository

func (r *MemoryRepository) ListAvailable(ctx context.Context, providerID uuid.UUID, window DateWindow) ([]ScheduleSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ScheduleSlot
	for _, s := range r.slots[providerID] {
		if s.Available && window.Contains(s.Date) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (r *MemoryRepository) Reserve(ctx context.Context, req Reservation) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, ok := r.providers[req.ProviderID]
	if !ok {
		return nil, ErrProviderNotFound
	}

	byKey := r.slots[req.ProviderID]

	// Re-check the whole contiguous set against current state before touching
	// anything: all-or-nothing.
	required := make([]*ScheduleSlot, 0, req.Units.Units())
	t := req.Start
	for i := 0; i < req.Units.Units(); i++ {
		s, ok := byKey[slotKey(req.Date, t)]
		if !ok || !s.Available {
			return nil, ErrSlotConflict
		}
		required = append(required, s)
		t = t.Next()
	}

	for _, s := range required {
		s.Available = false
	}

	appt := &Appointment{
		ID:         uuid.New(),
		PatientID:  req.PatientID,
		ProviderID: req.ProviderID,
		Date:       req.Date,
		Start:      req.Start,
		Duration:   req.Units,
		Location:   provider.Location,
		Status:     StatusConfirmed,
		CreatedAt:  time.Now(),
	}
	r.appointments[appt.ID] = appt

	if p, ok := r.patients[req.PatientID]; ok {
		p.VisitCount++
		p.UpdatedAt = appt.CreatedAt
	}

	cp := *appt
	return &cp, nil
}

func (r *MemoryRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return r.detailLocked(appt), nil
}

func (r *MemoryRepository) ListAppointmentsBetween(ctx context.Context, from, to Date) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AppointmentDetail
	for _, appt := range r.appointments {
		if appt.Status != StatusConfirmed {
			continue
		}
		if appt.Date.Before(from) || to.Before(appt.Date) {
			continue
		}
		out = append(out, *r.detailLocked(appt))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (r *MemoryRepository) detailLocked(appt *Appointment) *AppointmentDetail {
	detail := &AppointmentDetail{Appointment: *appt}
	if p, ok := r.patients[appt.PatientID]; ok {
		cp := *p
		detail.Patient = &cp
	}
	if pr, ok := r.providers[appt.ProviderID]; ok {
		cp := *pr
		detail.Provider = &cp
	}
	return detail
}

// EventRecorder

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = r.nextEventID
	r.nextEventID++
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *MemoryRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID, eventType string) ([]EventLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []EventLog
	for _, ev := range r.events {
		if ev.EventType != eventType {
			continue
		}
		if ev.AppointmentID == nil || *ev.AppointmentID != appointmentID {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
