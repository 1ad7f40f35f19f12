package types

// Persisted local state keys.
const (
	// CartKey holds the serialized Cart (a JSON array of CartItem).
	CartKey = "cart"

	// UserKey holds the SessionIdentity mirror.
	UserKey = "user"

	// SignupNameKey and SignupEmailKey hold the name and email of the last
	// accepted signup form, as JSON strings.
	SignupNameKey  = "demo_signup_name"
	SignupEmailKey = "demo_signup_email"
)

