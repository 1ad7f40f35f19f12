package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// MsgSignupSuccess is shown when a signup form is accepted.
const MsgSignupSuccess = "Account created successfully. Check your email to verify."

// RecordSignup validates s and, when it passes, keeps the trimmed name and
// email in store. The password is never written. A failed validation
// returns ValidationErrors and leaves the store untouched.
func RecordSignup(store types.Store, s Signup) error {
	if err := ValidateSignup(s); err != nil {
		return err
	}
	fields := []struct {
		key, value string
	}{
		{types.SignupNameKey, strings.TrimSpace(s.Name)},
		{types.SignupEmailKey, strings.TrimSpace(s.Email)},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", f.key, err)
		}
		if err := store.Set(f.key, data); err != nil {
			return fmt.Errorf("save %s: %w", f.key, err)
		}
	}
	return nil
}

// LoadSignup returns the name and email of the last accepted signup. Absent
// or unreadable values read as empty.
func LoadSignup(store types.Store) (name, email string) {
	return loadString(store, types.SignupNameKey), loadString(store, types.SignupEmailKey)
}

func loadString(store types.Store, key string) string {
	data, ok, err := store.Get(key)
	if err != nil || !ok {
		return ""
	}
	var s string
	if json.Unmarshal(data, &s) != nil {
		return ""
	}
	return s
}
