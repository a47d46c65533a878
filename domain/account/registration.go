package account

import (
	"strings"
	"unicode"
)

const (
	MaxNameLength     = 50
	MinPasswordLength = 12
	// Hashing cost grows with the input, the cap keeps a register request bounded.
	MaxPasswordLength = 72
)

// Registration is what a visitor submits to open an account.
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// NewUser builds the profile stored for a registration. The plain password never leaves this call.
func (r Registration) NewUser(passwordHash string) User {
	return User{
		FirstName:    strings.TrimSpace(r.FirstName),
		LastName:     strings.TrimSpace(r.LastName),
		Email:        strings.TrimSpace(r.Email),
		PasswordHash: passwordHash,
	}
}

// IsStrongPassword reports whether s mixes upper and lower case letters, digits and symbols.
func IsStrongPassword(s string) bool {
	var upper, lower, digit, symbol bool
	for _, c := range s {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsNumber(c):
			digit = true
		case unicode.IsPunct(c) || unicode.IsSymbol(c):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
