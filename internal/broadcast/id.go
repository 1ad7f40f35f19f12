package broadcast

import "github.com/google/uuid"

// NewContextID generates a UUID v7 identifying one attached context.
func NewContextID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
