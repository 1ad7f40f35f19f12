package types

import "net/mail"

// IsEmail reports whether s is a bare email address such as
// "demo@example.com". Display-name forms like "Demo <demo@example.com>" are
// not accepted.
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && addr.Name == ""
}

// IsZero reports whether the identity carries no user at all.
func (s SessionIdentity) IsZero() bool {
	return s.ID == "" && s.Username == "" && s.Email == ""
}
