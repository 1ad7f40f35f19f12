package session

import "github.com/mesh-intelligence/storefront/pkg/types"

// Presentation is the auth header as a pure function of the mirrored
// identity and the transient menu state.
type Presentation struct {
	LoggedIn    bool
	DisplayName string
	MenuOpen    bool
}

// Present builds the presentation for identity, or the login affordance
// when identity is nil. The menu can only be open while logged in.
func Present(identity *types.SessionIdentity, menuOpen bool) Presentation {
	if identity == nil {
		return Presentation{}
	}
	return Presentation{
		LoggedIn:    true,
		DisplayName: identity.DisplayName(),
		MenuOpen:    menuOpen,
	}
}
