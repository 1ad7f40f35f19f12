package authserver

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Demo account created by SeedDemoUser.
const (
	DemoEmail    = "demo@example.com"
	DemoUsername = "demouser"
	DemoPassword = "demo1234"
	DemoName     = "Demo User"
)

// HashPassword returns the bcrypt hash of password at cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// SeedDemoUser creates the demo account, or resets its password when it
// already exists.
func SeedDemoUser(ctx context.Context, users *UserStore, cost int) error {
	hash, err := HashPassword(DemoPassword, cost)
	if err != nil {
		return err
	}
	return users.UpsertUser(ctx, DemoEmail, DemoUsername, hash, DemoName)
}
