package booking

// Appointment lengths by patient classification.
const (
	NewPatientUnits       Duration = 2 // 60 minutes
	ReturningPatientUnits Duration = 1 // 30 minutes
)

// RequiredUnits maps a patient classification to the appointment length.
// Callers must pass the final patient record: a patient created mid
// conversation classifies as new until the repository says otherwise.
func RequiredUnits(p *Patient) Duration {
	if p.Returning() {
		return ReturningPatientUnits
	}
	return NewPatientUnits
}
