package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmark/vaultmark/internal/id"
)

func TestCodeChallenge_RFC7636Vector(t *testing.T) {
	// RFC 7636 Appendix B.
	verifier := "dBjftJeZ4CVP-mJ92K1z2aeVwRcVP_PRYVXjaVoK"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", CodeChallenge(verifier))
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier()
	require.NoError(t, err)

	assert.Len(t, v, 43)
	for _, r := range v {
		assert.True(t, strings.ContainsRune(id.Unreserved, r))
	}

	challenge := CodeChallenge(v)
	assert.Len(t, challenge, 43)
	assert.NotContains(t, challenge, "=")
}
