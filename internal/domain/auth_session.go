package domain

import "time"

// AuthSessionTTL bounds how long a pending authorization may wait for its callback.
const AuthSessionTTL = 10 * time.Minute

// AuthSession is one pending authorization attempt. It is consumed exactly
// once by the callback that carries a matching state.
type AuthSession struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the session is too old to accept a callback.
func (s *AuthSession) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) >= AuthSessionTTL
}
