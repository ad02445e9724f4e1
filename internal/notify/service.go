package notify

import (
	"context"
	"fmt"

	"github.com/careline/scheduling-agent/internal/booking"
	"github.com/careline/scheduling-agent/pkg/logging"
)

// Reminder kinds, in escalation order.
const (
	ReminderBasic = 1 + iota
	ReminderForms
	ReminderFinal
)

// Service composes and sends the patient-facing messages around a booking.
type Service struct {
	email  EmailSender
	sms    SMSSender
	logger *logging.Logger
}

func NewService(email EmailSender, sms SMSSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, sms: sms, logger: logger}
}

// SendConfirmation emails the booking summary right after commit.
func (s *Service) SendConfirmation(ctx context.Context, appt booking.Appointment, patient booking.Patient, provider booking.Provider) error {
	body := fmt.Sprintf(`Dear %s,

Your appointment has been successfully scheduled:

Date: %s
Time: %s
Doctor: %s
Location: %s
Duration: %d minutes
Appointment ID: %s

Important notes:
- Please arrive 15 minutes before your appointment time
- Bring a valid ID and your insurance card
- You will receive a patient intake form separately

If you need to reschedule or cancel, please contact us at least 24 hours in advance.

Thank you for choosing our medical center!

Best regards,
Medical Center Scheduling Team`,
		patient.Name, appt.Date.Long(), appt.Start.Clock12(), provider.Name,
		appt.Location, appt.Duration.Minutes(), appt.ID)

	return s.send(ctx, EmailMessage{
		To:      patient.Email,
		Subject: "Appointment Confirmation - Medical Center",
		Body:    body,
	})
}

// SendIntakeForm emails the pre-visit paperwork pointer.
func (s *Service) SendIntakeForm(ctx context.Context, patient booking.Patient, appt booking.Appointment, provider booking.Provider) error {
	body := fmt.Sprintf(`Dear %s,

Please complete the patient intake form before your upcoming appointment:

Appointment: %s at %s
Doctor: %s

Complete the form and bring it with you to your appointment, or fill it in
online through the patient portal.

Thank you!

Best regards,
Medical Center Team`,
		patient.Name, appt.Date.String(), appt.Start.Clock12(), provider.Name)

	return s.send(ctx, EmailMessage{
		To:      patient.Email,
		Subject: "Patient Intake Form - Please Complete Before Your Visit",
		Body:    body,
	})
}

// SendReminder sends the reminder email for the given kind, plus an SMS when
// a sender is configured. SMS failure does not fail the reminder.
func (s *Service) SendReminder(ctx context.Context, detail booking.AppointmentDetail, kind int) error {
	if detail.Patient == nil || detail.Provider == nil {
		return fmt.Errorf("reminder for appointment %s: missing patient or provider", detail.ID)
	}

	when := fmt.Sprintf("%s at %s", detail.Date.Long(), detail.Start.Clock12())

	var subject, body string
	switch kind {
	case ReminderForms:
		subject = "Appointment Reminder - Have you completed your forms?"
		body = fmt.Sprintf(`Dear %s,

Your appointment is coming up: %s

Have you completed your patient intake forms? If not, please complete them
before your visit.

Reply to confirm your attendance.`, detail.Patient.Name, when)
	case ReminderFinal:
		subject = "Final Appointment Reminder - Please Confirm"
		body = fmt.Sprintf(`Dear %s,

Your appointment is today: %s

Please confirm your attendance or let us know if you need to cancel.
If cancelling, please provide the reason.`, detail.Patient.Name, when)
	default:
		subject = "Appointment Reminder - Tomorrow"
		body = fmt.Sprintf(`Dear %s,

This is a reminder about your appointment:

%s
with %s

See you tomorrow!`, detail.Patient.Name, when, detail.Provider.Name)
	}

	if err := s.send(ctx, EmailMessage{To: detail.Patient.Email, Subject: subject, Body: body}); err != nil {
		return err
	}

	if s.sms != nil && detail.Patient.Phone != "" {
		text := fmt.Sprintf("Appointment reminder: %s with %s", when, detail.Provider.Name)
		if err := s.sms.SendSMS(ctx, detail.Patient.Phone, text); err != nil {
			s.logger.Error("reminder sms failed",
				"appointment_id", detail.ID, "error", err)
		}
	}
	return nil
}

func (s *Service) send(ctx context.Context, msg EmailMessage) error {
	if s.email == nil {
		return nil
	}
	if err := s.email.SendEmail(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}
