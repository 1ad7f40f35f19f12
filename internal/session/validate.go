package session

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// IdentifierKind says how the server looks an identifier up.
type IdentifierKind int

const (
	KindUsername IdentifierKind = iota
	KindEmail
)

func (k IdentifierKind) String() string {
	if k == KindEmail {
		return "email"
	}
	return "username"
}

// ClassifyIdentifier treats identifier as an email when it parses as a bare
// address, and as a username otherwise.
func ClassifyIdentifier(identifier string) IdentifierKind {
	if types.IsEmail(strings.TrimSpace(identifier)) {
		return KindEmail
	}
	return KindUsername
}

// Minimum lengths enforced before any request is sent.
const (
	MinLoginPasswordLen  = 6
	MinSignupPasswordLen = 8
	MinSignupNameLen     = 2
)

// FieldError is a validation failure for one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists the field errors of one form submission. It
// matches types.ErrValidation with errors.Is.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() error {
	return types.ErrValidation
}

// Message returns the error for field, or "".
func (v ValidationErrors) Message(field string) string {
	for _, fe := range v {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// ValidateLogin checks the login form. It returns ValidationErrors or nil.
func ValidateLogin(identifier, password string) error {
	var errs ValidationErrors

	id := strings.TrimSpace(identifier)
	switch {
	case id == "":
		errs = append(errs, FieldError{"identifier", "Please enter your email or username."})
	case strings.Contains(id, "@") && !types.IsEmail(id):
		errs = append(errs, FieldError{"identifier", "Please enter a valid email address."})
	}
	if utf8.RuneCountInString(password) < MinLoginPasswordLen {
		errs = append(errs, FieldError{"password", "Password must be at least 6 characters."})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Signup is the account creation form.
type Signup struct {
	Name        string
	Email       string
	Phone       string
	Password    string
	Confirm     string
	AcceptTerms bool
}

// ValidateSignup checks every field of the signup form and reports all
// failures at once. It returns ValidationErrors or nil.
func ValidateSignup(s Signup) error {
	var errs ValidationErrors

	if utf8.RuneCountInString(strings.TrimSpace(s.Name)) < MinSignupNameLen {
		errs = append(errs, FieldError{"name", "Please enter your full name."})
	}
	if !types.IsEmail(strings.TrimSpace(s.Email)) {
		errs = append(errs, FieldError{"email", "Please enter a valid email address."})
	}
	if !meetsPasswordPolicy(s.Password) {
		errs = append(errs, FieldError{"password", "Password must be at least 8 characters and include uppercase, lowercase, a number, and a symbol."})
	}
	if s.Password != s.Confirm {
		errs = append(errs, FieldError{"confirm", "Passwords do not match."})
	}
	if !s.AcceptTerms {
		errs = append(errs, FieldError{"terms", "You must accept the terms to create an account."})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

type passwordClasses struct {
	upper, lower, digit, symbol bool
}

func classify(pw string) passwordClasses {
	var c passwordClasses
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= 'a' && r <= 'z':
			c.lower = true
		case unicode.IsDigit(r) && r < utf8.RuneSelf:
			c.digit = true
		default:
			c.symbol = true
		}
	}
	return c
}

func meetsPasswordPolicy(pw string) bool {
	c := classify(pw)
	return utf8.RuneCountInString(pw) >= MinSignupPasswordLen && c.upper && c.lower && c.digit && c.symbol
}

// PasswordScore rates pw from 0 to 5, one point each for length of at least
// 8, an uppercase letter, a lowercase letter, a digit, and a symbol.
func PasswordScore(pw string) int {
	if pw == "" {
		return 0
	}
	c := classify(pw)
	score := 0
	for _, ok := range []bool{utf8.RuneCountInString(pw) >= MinSignupPasswordLen, c.upper, c.lower, c.digit, c.symbol} {
		if ok {
			score++
		}
	}
	return score
}
