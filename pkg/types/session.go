package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// SessionIdentity is the client-held copy of a server-confirmed identity.
// It drives presentation only and is never an authorization credential.
type SessionIdentity struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// DisplayName returns Name, falling back to Username.
func (s SessionIdentity) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Username
}

// UserID is a user identifier that decodes from either a JSON string or a
// JSON number, since servers disagree on how row IDs are serialized.
type UserID string

// UnmarshalJSON accepts a quoted string or a bare number.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*u = UserID(n.String())
	return nil
}

// UserIDFromInt formats a numeric row ID.
func UserIDFromInt(id int64) UserID {
	return UserID(strconv.FormatInt(id, 10))
}

// Authentication errors. Each maps to a distinct user-visible message but the
// same state transition back to logged out.
var (
	ErrMissingFields      = errors.New("missing email/username or password")
	ErrInvalidCredentials = errors.New("invalid email/username or password")
	ErrServer             = errors.New("server error")
	ErrTransport          = errors.New("connection error")
)

// Session state errors.
var (
	ErrLoginInFlight     = errors.New("login already in progress")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrValidation        = errors.New("invalid input")
)
