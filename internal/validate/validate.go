// Package validate holds the pure validation rules shared by the ingestion
// and provisioning stages. The two stages surface violations differently:
// ingestion aggregates them into the job's error list, provisioning drops
// the message and logs.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"bulk-user-provisioner/internal/models"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+$`)

var rowValidator = validator.New()

// Email checks the local-part@domain shape accepted by the pipeline.
func Email(email string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is required")
	}
	if !emailPattern.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// Password enforces length >= 8 plus at least one uppercase, lowercase,
// digit, and non-alphanumeric character.
func Password(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !(hasUpper && hasLower && hasDigit && hasSpecial) {
		return errors.New("password must include uppercase, lowercase, digit, and special character")
	}
	return nil
}

// Role reports whether role is one of the accepted user roles.
func Role(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleReadOnly, models.RoleCustomer:
		return true
	}
	return false
}

// Row is one parsed CSV record presented for ingestion-stage validation.
// Field order matters: violations are reported first-field-first, matching
// the order the columns are documented in.
type Row struct {
	Name     string `validate:"required"`
	Email    string `validate:"required"`
	Password string `validate:"required"`
	Role     string `validate:"required,oneof=ADMIN READ_ONLY CUSTOMER"`
}

// CheckRow validates the required columns and the role set. The returned
// error text is the row-level reason recorded on the job ("Missing name",
// "Invalid role: X"); only the first violation is reported.
func CheckRow(r Row) error {
	err := rowValidator.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	if fe.Tag() == "oneof" {
		return fmt.Errorf("Invalid role: %s", fe.Value())
	}
	return fmt.Errorf("Missing %s", strings.ToLower(fe.Field()))
}
