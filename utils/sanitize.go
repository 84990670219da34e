// utils/sanitize.go
package utils

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneStripper = regexp.MustCompile(`[^\d+]`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// SanitizeText trims free text such as names, notes and reasons, removes
// control characters and collapses runs of whitespace.
func SanitizeText(input string) string {
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(spaceRun.ReplaceAllString(input, " "))
}

// SanitizeEmail sanitizes and validates an email address
func SanitizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return "", errors.New("invalid email format")
	}
	return email, nil
}

// SanitizePhone sanitizes and validates a phone number
func SanitizePhone(phone string) (string, error) {
	// phone is optional
	if strings.TrimSpace(phone) == "" {
		return "", nil
	}

	// Remove all non-numeric characters except +
	phone = phoneStripper.ReplaceAllString(phone, "")
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	// Basic validation for international phone number
	if len(phone) < 8 || len(phone) > 16 {
		return "", errors.New("invalid phone number length")
	}
	return phone, nil
}
