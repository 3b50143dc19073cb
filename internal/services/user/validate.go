package user

import (
	"strings"
	"unicode"

	"food-delivery/internal/domain/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	minNameLength     = 2
	minPhoneDigits    = 10
	minPasswordLength = 8
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// normalizeName trims and title-cases a first or last name.
func normalizeName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < minNameLength {
		return "", invalid(field, "the name must contain at least 2 characters")
	}
	// Casers keep state and are not shared between goroutines.
	return cases.Title(language.Und).String(name), nil
}

// validateNumber checks that a phone number carries enough digits. The number
// is stored as entered since it is also the login name.
func validateNumber(number string) error {
	digits := 0
	for _, r := range number {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < minPhoneDigits {
		return invalid("number", "the phone number must contain at least 10 digits")
	}
	return nil
}

func validatePassword(field, password, confirm, confirmField string) error {
	if len([]rune(password)) < minPasswordLength {
		return invalid(field, "the password must contain at least 8 characters")
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	switch {
	case !upper:
		return invalid(field, "the password must contain at least one capital letter")
	case !lower:
		return invalid(field, "the password must contain at least one lowercase letter")
	case !digit:
		return invalid(field, "the password must contain at least one digit")
	case password != confirm:
		return invalid(confirmField, "passwords don't match")
	}

	return nil
}

func validateNewUser(u models.NewUser) (models.NewUser, error) {
	var err error

	if u.FirstName, err = normalizeName("first_name", u.FirstName); err != nil {
		return u, err
	}
	if u.LastName, err = normalizeName("last_name", u.LastName); err != nil {
		return u, err
	}
	if err = validateNumber(u.Number); err != nil {
		return u, err
	}
	if err = validatePassword("password", u.Password, u.ConfirmPassword, "confirm_password"); err != nil {
		return u, err
	}

	return u, nil
}

func validateUserUpdate(u models.UserUpdate) (models.UserUpdate, error) {
	if u.FirstName != nil {
		name, err := normalizeName("first_name", *u.FirstName)
		if err != nil {
			return u, err
		}
		u.FirstName = &name
	}
	if u.LastName != nil {
		name, err := normalizeName("last_name", *u.LastName)
		if err != nil {
			return u, err
		}
		u.LastName = &name
	}
	if u.Number != nil {
		if err := validateNumber(*u.Number); err != nil {
			return u, err
		}
	}

	return u, nil
}

// normalizeAddress trims every field; street, city and country must be non-empty.
func normalizeAddress(a models.Address) (models.Address, error) {
	a.Street = strings.TrimSpace(a.Street)
	a.HouseNumber = strings.TrimSpace(a.HouseNumber)
	a.Apartment = strings.TrimSpace(a.Apartment)
	a.City = strings.TrimSpace(a.City)
	a.Country = strings.TrimSpace(a.Country)

	for _, f := range []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"country", a.Country},
	} {
		if f.value == "" {
			return a, invalid(f.name, "the field cannot be empty")
		}
	}

	return a, nil
}
