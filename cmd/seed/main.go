package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careline/scheduling-agent/internal/booking"
	"github.com/careline/scheduling-agent/internal/db"
)

const (
	providerCount = 8
	patientCount  = 200
	windowDays    = 14
	dayStart      = 9 * 60  // 09:00
	dayEnd        = 17 * 60 // 17:00, exclusive
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	bg := context.Background()
	if err := createSchema(bg, pool); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	providerIDs, err := seedProviders(bg, pool, providerCount)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedPatients(bg, pool, patientCount); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSchedules(bg, pool, providerIDs); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}

	log.Println("seed complete")
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			specialty TEXT NOT NULL,
			location TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS patients (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			dob DATE NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			insurance_carrier TEXT NOT NULL DEFAULT '',
			insurance_member_id TEXT NOT NULL DEFAULT '',
			insurance_group_id TEXT NOT NULL DEFAULT '',
			visit_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS schedule_slots (
			provider_id UUID NOT NULL REFERENCES providers(id),
			date DATE NOT NULL,
			start_minute INT NOT NULL,
			available BOOLEAN NOT NULL DEFAULT true,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (provider_id, date, start_minute)
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id UUID PRIMARY KEY,
			patient_id UUID NOT NULL REFERENCES patients(id),
			provider_id UUID NOT NULL REFERENCES providers(id),
			date DATE NOT NULL,
			start_minute INT NOT NULL,
			duration_units INT NOT NULL,
			location TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			appointment_id UUID,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_slots_lookup
			ON schedule_slots (provider_id, date, available)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_date
			ON appointments (date, status)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Family Medicine",
		"Internal Medicine",
		"Cardiology",
		"Dermatology",
		"Pediatrics",
		"Orthopedics",
		"Neurology",
		"Endocrinology",
	}
	locations := []string{
		"Main Clinic - Room 101",
		"Main Clinic - Room 205",
		"North Wing - Suite 3",
		"East Annex - Suite 12",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[i%len(specialties)]
		loc := locations[gofakeit.Number(0, len(locations)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, location, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, spec, loc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("providers seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			dob := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2007, 12, 31, 0, 0, 0, 0, time.UTC),
			)
			phone := gofakeit.Numerify("##########")
			email := gofakeit.Email()

			// Roughly half are returning patients; a third of those still
			// carry the legacy insurance placeholder.
			visitCount := 0
			carrier, memberID, groupID := "", "", ""
			if gofakeit.Bool() {
				visitCount = gofakeit.Number(1, 12)
				if gofakeit.Number(0, 2) == 0 {
					carrier, memberID, groupID = booking.InsurancePlaceholder, booking.InsurancePlaceholder, booking.InsurancePlaceholder
				} else {
					carrier = gofakeit.RandomString([]string{"Blue Cross", "Aetna", "Cigna", "UnitedHealth", "Kaiser"})
					memberID = gofakeit.Numerify("MBR########")
					groupID = gofakeit.Numerify("GRP#####")
				}
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, dob, phone, email, insurance_carrier, insurance_member_id, insurance_group_id, visit_count, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			`, id, name, dob, phone, email, carrier, memberID, groupID, visitCount)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

func seedSchedules(ctx context.Context, pool *pgxpool.Pool, providerIDs []uuid.UUID) error {
	log.Printf("seeding %d days of schedule for %d providers", windowDays, len(providerIDs))

	today := time.Now().Truncate(24 * time.Hour)

	for _, providerID := range providerIDs {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for day := 0; day < windowDays; day++ {
			date := today.AddDate(0, 0, day)
			for minute := dayStart; minute < dayEnd; minute += booking.SlotMinutes {
				_, err := tx.Exec(ctx, `
					INSERT INTO schedule_slots (provider_id, date, start_minute, available, updated_at)
					VALUES ($1, $2, $3, true, now())
					ON CONFLICT (provider_id, date, start_minute) DO NOTHING
				`, providerID, date, minute)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	log.Println("schedules seeded")
	return nil
}
