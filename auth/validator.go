package auth

import (
	"fmt"
	"interest-chat/domain/account"
	"interest-chat/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type fieldRule struct {
	field string
	value string
	tag   string
}

// ValidateRegistration checks a registration against the account limits before any hashing happens.
// The first failing field is named in the error.
func ValidateRegistration(r account.Registration) error {
	rules := []fieldRule{
		{"firstName", strings.TrimSpace(r.FirstName), fmt.Sprintf("required,max=%d", account.MaxNameLength)},
		{"lastName", strings.TrimSpace(r.LastName), fmt.Sprintf("max=%d", account.MaxNameLength)},
		{"email", strings.TrimSpace(r.Email), "required,email"},
		{"password", r.Password, fmt.Sprintf("required,min=%d,max=%d", account.MinPasswordLength, account.MaxPasswordLength)},
	}
	for _, rule := range rules {
		if err := validate.Var(rule.value, rule.tag); err != nil {
			return fmt.Errorf("%w: %s must satisfy %s", errors.ErrInvalidRegistration, rule.field, rule.tag)
		}
	}

	if !account.IsStrongPassword(r.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}
