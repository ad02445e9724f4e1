package conversation

import (
	"fmt"
	"strings"

	"github.com/careline/scheduling-agent/internal/booking"
)

func greetingReply() string {
	return `Welcome to Medical Center Appointment Scheduling!

I'm here to help you schedule your appointment. Let me gather some basic information.

Please provide your full name:`
}

func knownPatientReply(p *booking.Patient, providers []booking.Provider) string {
	return fmt.Sprintf(`Great! I found your information in our system.

Name: %s
Phone: %s
Email: %s

Which doctor would you like to see? Our available doctors are:
%s`, p.Name, FormatPhone(p.Phone), p.Email, formatProviderList(providers))
}

func newPatientReply(name string) string {
	return fmt.Sprintf("Thank you, %s. I don't see you in our system, so I'll set you up as a new patient.\n\nPlease provide your date of birth (YYYY-MM-DD format):", name)
}

func doctorPromptReply(providers []booking.Provider) string {
	return fmt.Sprintf(`Thank you. Now, which doctor would you like to see?

Our available doctors are:
%s

Please type the doctor's name:`, formatProviderList(providers))
}

func unknownDoctorReply(providers []booking.Provider) string {
	return fmt.Sprintf("I didn't recognize that doctor. Please select from our available doctors:\n%s", formatProviderList(providers))
}

func formatProviderList(providers []booking.Provider) string {
	lines := make([]string, 0, len(providers))
	for _, p := range providers {
		lines = append(lines, fmt.Sprintf("• %s - %s (%s)", p.Name, p.Specialty, p.Location))
	}
	return strings.Join(lines, "\n")
}

func availabilityReply(provider *booking.Provider, candidates []booking.CandidateSlot) string {
	return fmt.Sprintf(`Here are the available appointment slots for %s:

%s

Please type the number of your preferred slot:`, provider.Name, formatCandidateList(candidates, provider))
}

func noAvailabilityReply(provider *booking.Provider, days int) string {
	return fmt.Sprintf("I'm sorry, %s has no available appointments in the next %d days. Would you like to try a different doctor?", provider.Name, days)
}

func formatCandidateList(candidates []booking.CandidateSlot, provider *booking.Provider) string {
	lines := make([]string, 0, len(candidates))
	for i, c := range candidates {
		lines = append(lines, fmt.Sprintf("%d. %s at %s - %s", i+1, c.Date.Long(), c.Start.Clock12(), provider.Location))
	}
	return strings.Join(lines, "\n")
}

func insurancePromptReply() string {
	return `Before we confirm your appointment, I need to collect your insurance information.

Please provide:
1. Insurance carrier (e.g., Blue Cross, Aetna, Cigna)
2. Member ID
3. Group ID

Start with your insurance carrier:`
}

func summaryReply(s *Session) string {
	classification := "New patient"
	if s.Patient.Returning() {
		classification = "Returning patient"
	}

	carrier := s.Patient.Insurance.Carrier
	if s.Insurance.Carrier != "" {
		carrier = s.Insurance.Carrier
	}
	if carrier == "" || strings.EqualFold(carrier, booking.InsurancePlaceholder) {
		carrier = "On file"
	}

	return fmt.Sprintf(`Please review your appointment details:

Appointment Summary
Patient: %s
Doctor: %s
Date: %s
Time: %s
Location: %s
Duration: %d minutes (%s)

Insurance: %s

Type 'CONFIRM' to book this appointment or 'CANCEL' to start over:`,
		s.Patient.Name, s.Provider.Name, s.Pending.Date.Long(), s.Pending.Start.Clock12(),
		s.Provider.Location, s.Pending.Units.Minutes(), classification, carrier)
}

func bookedReply(appt *booking.Appointment, provider *booking.Provider, patient *booking.Patient) string {
	return fmt.Sprintf(`Appointment Confirmed!

Your appointment has been successfully booked:
- Appointment ID: %s
- Date & Time: %s at %s
- Doctor: %s

Next Steps:
- Confirmation email sent to %s
- Patient intake form sent separately
- Please arrive 15 minutes early
- Bring ID and insurance card

Thank you for choosing our medical center!

---
Type anything to schedule another appointment.`,
		appt.ID, appt.Date.String(), appt.Start.Clock12(), provider.Name, patient.Email)
}

func conflictReply(provider *booking.Provider, candidates []booking.CandidateSlot) string {
	return fmt.Sprintf(`I'm sorry, that time was just taken by another patient.

Here are the currently available slots for %s:

%s

Please type the number of your preferred slot:`, provider.Name, formatCandidateList(candidates, provider))
}

func cancelledReply() string {
	return "Appointment booking cancelled. Type anything to start over."
}

func transientErrorReply() string {
	return "Sorry, something went wrong on our side. Please try again in a moment."
}
