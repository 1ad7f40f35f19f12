package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

func TestClassifyIdentifier(t *testing.T) {
	assert.Equal(t, KindEmail, ClassifyIdentifier("demo@example.com"))
	assert.Equal(t, KindEmail, ClassifyIdentifier("  demo@example.com "))
	assert.Equal(t, KindUsername, ClassifyIdentifier("demouser"))
	assert.Equal(t, KindUsername, ClassifyIdentifier("demo@"))
	assert.Equal(t, "email", KindEmail.String())
	assert.Equal(t, "username", KindUsername.String())
}

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		password   string
		wantFields []string
	}{
		{name: "valid username", identifier: "demouser", password: "demo1234"},
		{name: "valid email", identifier: "demo@example.com", password: "123456"},
		{name: "empty identifier", identifier: "  ", password: "demo1234", wantFields: []string{"identifier"}},
		{name: "malformed email", identifier: "demo@@example", password: "demo1234", wantFields: []string{"identifier"}},
		{name: "short password", identifier: "demouser", password: "12345", wantFields: []string{"password"}},
		{name: "both", identifier: "", password: "", wantFields: []string{"identifier", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogin(tt.identifier, tt.password)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrValidation)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var fields []string
			for _, fe := range verrs {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidateSignup(t *testing.T) {
	valid := Signup{
		Name:        "Demo User",
		Email:       "demo@example.com",
		Password:    "Secr3t!pw",
		Confirm:     "Secr3t!pw",
		AcceptTerms: true,
	}
	require.NoError(t, ValidateSignup(valid))

	tests := []struct {
		name   string
		mutate func(s *Signup)
		field  string
		msg    string
	}{
		{name: "short name", mutate: func(s *Signup) { s.Name = " D " }, field: "name", msg: "Please enter your full name."},
		{name: "bad email", mutate: func(s *Signup) { s.Email = "demo" }, field: "email", msg: "Please enter a valid email address."},
		{name: "no symbol", mutate: func(s *Signup) { s.Password, s.Confirm = "Secr3tpw", "Secr3tpw" }, field: "password"},
		{name: "no upper", mutate: func(s *Signup) { s.Password, s.Confirm = "secr3t!pw", "secr3t!pw" }, field: "password"},
		{name: "too short", mutate: func(s *Signup) { s.Password, s.Confirm = "S3t!a", "S3t!a" }, field: "password"},
		{name: "mismatch", mutate: func(s *Signup) { s.Confirm = "other" }, field: "confirm", msg: "Passwords do not match."},
		{name: "terms", mutate: func(s *Signup) { s.AcceptTerms = false }, field: "terms", msg: "You must accept the terms to create an account."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)

			err := ValidateSignup(s)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, verrs.Message(tt.field))
			}
		})
	}
}

func TestValidateSignup_ReportsEveryField(t *testing.T) {
	err := ValidateSignup(Signup{Password: "x", Confirm: "y"})

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 5)
	assert.Contains(t, err.Error(), "terms: ")
}

func TestPasswordScore(t *testing.T) {
	tests := []struct {
		pw   string
		want int
	}{
		{pw: "", want: 0},
		{pw: "a", want: 1},
		{pw: "abcdefgh", want: 2},
		{pw: "Abcdefgh", want: 3},
		{pw: "Abcdefg1", want: 4},
		{pw: "Abcdef1!", want: 5},
		{pw: "_", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.pw, func(t *testing.T) {
			assert.Equal(t, tt.want, PasswordScore(tt.pw))
		})
	}
}
