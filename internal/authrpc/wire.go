package authrpc

import "github.com/mesh-intelligence/storefront/pkg/types"

// Endpoint paths served by the authentication server.
const (
	LoginPath   = "/api/login"
	LogoutPath  = "/api/logout"
	SessionPath = "/api/session"
)

// LoginRequest is the login RPC body. The fields are pointers so that the
// server can tell a missing key from an empty value.
type LoginRequest struct {
	Identifier *string `json:"identifier"`
	Password   *string `json:"password"`
}

// LoginResponse is returned by the login RPC for success and failure alike.
type LoginResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	User    *types.SessionIdentity `json:"user,omitempty"`
}

// LogoutResponse is returned by the logout RPC.
type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionResponse is returned by the session-check RPC. User is null when
// LoggedIn is false.
type SessionResponse struct {
	Success  bool                   `json:"success"`
	LoggedIn bool                   `json:"logged_in"`
	User     *types.SessionIdentity `json:"user"`
}
