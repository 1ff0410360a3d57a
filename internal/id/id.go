// Package id generates identifiers and OAuth nonces.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Unreserved is the RFC 3986 unreserved character set, which RFC 7636
// requires for PKCE code verifiers.
const Unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// NonceLength is the length of PKCE verifiers and OAuth state values.
// RFC 7636 allows 43 to 128 characters.
const NonceLength = 43

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "sse-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Nonce returns a random NonceLength string over the unreserved alphabet,
// suitable as a PKCE code verifier or OAuth state.
func Nonce() (string, error) {
	s, err := gonanoid.Generate(Unreserved, NonceLength)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return s, nil
}
