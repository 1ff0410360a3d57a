package domain

import "time"

// Credentials holds the OAuth client registration and the tokens issued to it.
// Owned by the token store; only authorization outcomes mutate it.
type Credentials struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenExpiry  time.Time `json:"token_expiry,omitzero"`
	// CodeVerifier lives for a single authorization attempt.
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// Authenticated reports whether an access token is present.
func (c Credentials) Authenticated() bool {
	return c.AccessToken != ""
}

// CanRefresh reports whether a refresh grant can be attempted.
func (c Credentials) CanRefresh() bool {
	return c.RefreshToken != "" && c.ClientID != ""
}

// ClearTokens drops every token and the pending verifier, keeping the
// client registration.
func (c *Credentials) ClearTokens() {
	c.AccessToken = ""
	c.RefreshToken = ""
	c.TokenExpiry = time.Time{}
	c.CodeVerifier = ""
}
