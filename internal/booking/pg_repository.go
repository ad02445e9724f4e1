package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob time.Time

	err := row.Scan(
		&p.ID,
		&p.Name,
		&dob,
		&p.Phone,
		&p.Email,
		&p.Insurance.Carrier,
		&p.Insurance.MemberID,
		&p.Insurance.GroupID,
		&p.VisitCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.DOB = DateOf(dob)
	return &p, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.Location,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var startMinute, durationUnits int

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&date,
		&startMinute,
		&durationUnits,
		&a.Location,
		&a.Status,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(date)
	a.Start = TimeOfDay(startMinute)
	a.Duration = Duration(durationUnits)
	return &a, nil
}

const patientColumns = `id, name, dob, phone, email, insurance_carrier, insurance_member_id, insurance_group_id, visit_count, created_at, updated_at`

// PatientRepository

func (r *PgRepository) FindPatient(ctx context.Context, q PatientQuery) (*Patient, error) {
	where := ""
	args := []any{}

	add := func(clause string, arg any) {
		args = append(args, arg)
		cond := fmt.Sprintf(clause, len(args))
		if where == "" {
			where = "WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}

	if q.Name != "" {
		add("name ILIKE '%%' || $%d || '%%'", q.Name)
	}
	if !q.DOB.IsZero() {
		add("dob = $%d", q.DOB.Time())
	}
	if q.Phone != "" {
		add("phone = $%d", q.Phone)
	}

	if len(args) == 0 {
		return nil, ErrPatientNotFound
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM patients
		%s
		ORDER BY created_at
		LIMIT 1
	`, patientColumns, where), args...)

	return scanPatient(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM patients
		WHERE id = $1
	`, patientColumns), id)
	return scanPatient(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, np NewPatient) (*Patient, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO patients (id, name, dob, phone, email, insurance_carrier, insurance_member_id, insurance_group_id, visit_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, now(), now())
		RETURNING %s
	`, patientColumns), id, np.Name, np.DOB.Time(), np.Phone, np.Email, np.Insurance.Carrier, np.Insurance.MemberID, np.Insurance.GroupID)

	return scanPatient(row)
}

func (r *PgRepository) UpdateInsurance(ctx context.Context, id uuid.UUID, ins Insurance) (*Patient, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE patients
		SET insurance_carrier = $2,
		    insurance_member_id = $3,
		    insurance_group_id = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, patientColumns), id, ins.Carrier, ins.MemberID, ins.GroupID)

	return scanPatient(row)
}

// ProviderDirectory

func (r *PgRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, location, created_at, updated_at
		FROM providers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, location, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

// ScheduleRepository

func (r *PgRepository) ListAvailable(ctx context.Context, providerID uuid.UUID, window DateWindow) ([]ScheduleSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, date, start_minute
		FROM schedule_slots
		WHERE provider_id = $1
		  AND available
		  AND date >= $2
		  AND date < $3
		ORDER BY date, start_minute
	`, providerID, window.From.Time(), window.End().Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleSlot
	for rows.Next() {
		var s ScheduleSlot
		var date time.Time
		var startMinute int
		if err := rows.Scan(&s.ProviderID, &date, &startMinute); err != nil {
			return nil, err
		}
		s.Date = DateOf(date)
		s.Start = TimeOfDay(startMinute)
		s.Available = true
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Reserve locks the full unit set with SELECT ... FOR UPDATE inside one
// transaction, so two reservations touching any common unit serialize and
// the loser sees the flipped rows.
func (r *PgRepository) Reserve(ctx context.Context, req Reservation) (*Appointment, error) {
	provider, err := r.GetProviderByID(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}

	startMinutes := make([]int, 0, req.Units.Units())
	t := req.Start
	for i := 0; i < req.Units.Units(); i++ {
		startMinutes = append(startMinutes, t.Minutes())
		t = t.Next()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT start_minute
		FROM schedule_slots
		WHERE provider_id = $1
		  AND date = $2
		  AND start_minute = ANY($3)
		  AND available
		FOR UPDATE
	`, req.ProviderID, req.Date.Time(), startMinutes)
	if err != nil {
		return nil, fmt.Errorf("lock slots: %w", err)
	}

	locked := 0
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			rows.Close()
			return nil, err
		}
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if locked != len(startMinutes) {
		return nil, ErrSlotConflict
	}

	tag, err := tx.Exec(ctx, `
		UPDATE schedule_slots
		SET available = false,
		    updated_at = now()
		WHERE provider_id = $1
		  AND date = $2
		  AND start_minute = ANY($3)
	`, req.ProviderID, req.Date.Time(), startMinutes)
	if err != nil {
		return nil, fmt.Errorf("flip slots: %w", err)
	}
	if int(tag.RowsAffected()) != len(startMinutes) {
		return nil, ErrSlotConflict
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, date, start_minute, duration_units, location, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'confirmed', now())
		RETURNING id, patient_id, provider_id, date, start_minute, duration_units, location, status, created_at
	`, id, req.PatientID, req.ProviderID, req.Date.Time(), req.Start.Minutes(), req.Units.Units(), provider.Location)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE patients
		SET visit_count = visit_count + 1,
		    updated_at = now()
		WHERE id = $1
	`, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("bump visit count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve tx: %w", err)
	}

	return appt, nil
}

const appointmentDetailQuery = `
	SELECT a.id, a.patient_id, a.provider_id, a.date, a.start_minute, a.duration_units, a.location, a.status, a.created_at,
	       p.id, p.name, p.dob, p.phone, p.email, p.insurance_carrier, p.insurance_member_id, p.insurance_group_id, p.visit_count, p.created_at, p.updated_at,
	       d.id, d.name, d.specialty, d.location, d.created_at, d.updated_at
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN providers d ON d.id = a.provider_id
`

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var detail AppointmentDetail
	var patient Patient
	var provider Provider
	var apptDate, dob time.Time
	var startMinute, durationUnits int

	err := row.Scan(
		&detail.ID, &detail.PatientID, &detail.ProviderID, &apptDate, &startMinute, &durationUnits, &detail.Appointment.Location, &detail.Status, &detail.Appointment.CreatedAt,
		&patient.ID, &patient.Name, &dob, &patient.Phone, &patient.Email, &patient.Insurance.Carrier, &patient.Insurance.MemberID, &patient.Insurance.GroupID, &patient.VisitCount, &patient.CreatedAt, &patient.UpdatedAt,
		&provider.ID, &provider.Name, &provider.Specialty, &provider.Location, &provider.CreatedAt, &provider.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	detail.Date = DateOf(apptDate)
	detail.Start = TimeOfDay(startMinute)
	detail.Duration = Duration(durationUnits)
	patient.DOB = DateOf(dob)
	detail.Patient = &patient
	detail.Provider = &provider
	return &detail, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, appointmentDetailQuery+` WHERE a.id = $1`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, from, to Date) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, appointmentDetailQuery+`
		WHERE a.status = 'confirmed'
		  AND a.date >= $1
		  AND a.date <= $2
		ORDER BY a.date, a.start_minute
	`, from.Time(), to.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// EventRecorder

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID, eventType string) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at
		FROM event_logs
		WHERE appointment_id = $1
		  AND event_type = $2
		ORDER BY id
	`, appointmentID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
