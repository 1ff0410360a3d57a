package auth

import (
	"log/slog"
	"net/url"
	"regexp"
)

// Fallback patterns for redirect URIs that do not parse, or that carry the
// parameters in a path segment instead of the query.
var (
	codePattern  = regexp.MustCompile(`(?:^|[?&/#])code=([^&#/\s]+)`)
	statePattern = regexp.MustCompile(`(?:^|[?&/#])state=([^&#/\s]+)`)
	errorPattern = regexp.MustCompile(`(?:^|[?&/#])error=([^&#/\s]+)`)
)

// CallbackParams are the parameters of an authorization redirect.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallback extracts the authorization response from a redirect URI.
func ParseCallback(redirectURI string) CallbackParams {
	var p CallbackParams

	if u, err := url.Parse(redirectURI); err == nil {
		q := u.Query()
		p.Code = q.Get("code")
		p.State = q.Get("state")
		p.Error = q.Get("error")
		p.ErrorDescription = q.Get("error_description")
	}

	if p.Code == "" {
		p.Code = matchParam(codePattern, redirectURI)
	}
	if p.State == "" {
		p.State = matchParam(statePattern, redirectURI)
	}
	if p.Error == "" {
		p.Error = matchParam(errorPattern, redirectURI)
	}
	return p
}

func matchParam(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if v, err := url.QueryUnescape(m[1]); err == nil {
		return v
	}
	return m[1]
}

// ExtractCode returns the authorization code carried by a redirect URI.
// ok is false when the provider reported an error or no code is present.
func ExtractCode(redirectURI string, logger *slog.Logger) (code string, ok bool) {
	p := ParseCallback(redirectURI)
	if p.Error != "" {
		if logger != nil {
			logger.Warn("authorization redirect carried an error",
				"error", p.Error,
				"error_description", p.ErrorDescription,
			)
		}
		return "", false
	}
	if p.Code == "" {
		if logger != nil {
			logger.Warn("authorization redirect carried no code")
		}
		return "", false
	}
	return p.Code, true
}
