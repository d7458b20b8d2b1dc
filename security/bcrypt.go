// Package security provides cryptographic and authentication utilities.
// This file implements password hashing and verification using bcrypt algorithm.
package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is the default cost factor for bcrypt password hashing.
	// Cost factor of 10 provides a good balance between security and performance.
	// Higher values increase security but also increase hashing time exponentially.
	DefaultBcryptCost = 10
)

// HashPassword hashes password with DefaultBcryptCost. Used for basic-auth
// credential storage; see api/basicauth.go.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// HashPasswordWithCost hashes password at an explicit cost factor, rejecting
// anything outside bcrypt.MinCost..bcrypt.MaxCost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("invalid cost factor %d: must be between %d and %d", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword returns nil if password matches hash, bcrypt's constant-time
// comparison guards against timing attacks.
func VerifyPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		return err // Return bcrypt.ErrMismatchedHashAndPassword or other error
	}
	return nil
}

// NeedsRehash reports whether hash was generated at a cost factor other than
// cost, so callers can upgrade stored hashes opportunistically on login.
func NeedsRehash(hash string, cost int) (bool, error) {
	actualCost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, fmt.Errorf("failed to get hash cost: %w", err)
	}
	return actualCost != cost, nil
}
