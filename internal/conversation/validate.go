package conversation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/careline/scheduling-agent/internal/booking"
)

var (
	nameRe     = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonDigitRe = regexp.MustCompile(`\D`)
)

// ValidateName accepts full names of at least two characters made of
// letters, spaces, hyphens and apostrophes.
func ValidateName(input string) (string, error) {
	name := strings.TrimSpace(input)
	if len(name) < 2 {
		return "", fmt.Errorf("name must be at least 2 characters long")
	}
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf("name can only contain letters, spaces, hyphens, and apostrophes")
	}
	return name, nil
}

// ValidateDOB parses a YYYY-MM-DD date of birth that lies in the past and
// within a plausible lifespan.
func ValidateDOB(input string, now time.Time) (booking.Date, error) {
	dob, err := booking.ParseDate(strings.TrimSpace(input))
	if err != nil {
		return booking.Date{}, err
	}
	today := booking.DateOf(now)
	if today.Before(dob) {
		return booking.Date{}, fmt.Errorf("date of birth cannot be in the future")
	}
	if dob.Before(booking.DateOf(now.AddDate(-120, 0, 0))) {
		return booking.Date{}, fmt.Errorf("please check the date of birth")
	}
	return dob, nil
}

// ValidatePhone requires at least ten digits and returns the digit string.
func ValidatePhone(input string) (string, error) {
	digits := nonDigitRe.ReplaceAllString(input, "")
	if len(digits) < 10 {
		return "", fmt.Errorf("phone number must contain at least 10 digits")
	}
	return digits, nil
}

// FormatPhone renders a digit string for display.
func FormatPhone(phone string) string {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	switch len(digits) {
	case 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case 11:
		return fmt.Sprintf("+%s (%s) %s-%s", digits[:1], digits[1:4], digits[4:7], digits[7:])
	default:
		return phone
	}
}

// ValidateEmail checks the standard address shape.
func ValidateEmail(input string) (string, error) {
	email := strings.TrimSpace(input)
	if !emailRe.MatchString(email) {
		return "", fmt.Errorf("invalid email address")
	}
	return email, nil
}

// ValidateInsuranceField requires at least 3 characters for member and group
// ids, and at least 2 for the carrier name.
func ValidateInsuranceField(input string, minLen int) (string, error) {
	v := strings.TrimSpace(input)
	if len(v) < minLen {
		return "", fmt.Errorf("value must be at least %d characters", minLen)
	}
	return v, nil
}
