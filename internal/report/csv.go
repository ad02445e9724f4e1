package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/careline/scheduling-agent/internal/booking"
)

var header = []string{
	"appointment_id", "patient_name", "patient_email", "patient_phone",
	"doctor_name", "specialty", "date", "time", "duration_minutes",
	"location", "status", "booked_at",
}

// CSVExporter appends confirmed bookings to a daily CSV file for the office
// staff. One file per calendar day, header written on creation.
type CSVExporter struct {
	dir string

	mu sync.Mutex
}

func NewCSVExporter(dir string) (*CSVExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	return &CSVExporter{dir: dir}, nil
}

func (e *CSVExporter) ExportAppointment(ctx context.Context, appt booking.Appointment, patient booking.Patient, provider booking.Provider) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	path := filepath.Join(e.dir, fmt.Sprintf("appointments_%s.csv", time.Now().Format("20060102")))

	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
	}

	row := []string{
		appt.ID.String(),
		patient.Name,
		patient.Email,
		patient.Phone,
		provider.Name,
		provider.Specialty,
		appt.Date.String(),
		appt.Start.String(),
		strconv.Itoa(appt.Duration.Minutes()),
		appt.Location,
		string(appt.Status),
		appt.CreatedAt.Format(time.RFC3339),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}
