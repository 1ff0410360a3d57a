package auth

import (
	"golang.org/x/oauth2"

	"github.com/vaultmark/vaultmark/internal/id"
)

// ChallengeMethod is the only PKCE method we send. There is no "plain"
// fallback.
const ChallengeMethod = "S256"

// NewVerifier returns a fresh RFC 7636 code verifier.
func NewVerifier() (string, error) {
	return id.Nonce()
}

// CodeChallenge derives the S256 challenge: base64url(SHA256(verifier))
// without padding.
func CodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
