package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/validation"
)

type callbackRequest struct {
	URI      string `json:"uri" validate:"required"`
	Redirect string `json:"redirect" validate:"redirect_uri"`
	Template string `json:"template" validate:"template"`
	Method   string `json:"method" validate:"oneof=separate single"`
}

func validRequest() callbackRequest {
	return callbackRequest{
		URI:      "vaultmark://oauth/callback?code=abc&state=xyz",
		Redirect: "vaultmark://oauth/callback",
		Template: "{{date}}-{{username}}-{{id}}",
		Method:   "separate",
	}
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(validRequest()))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		mutate    func(*callbackRequest)
		wantField string
	}{
		{
			name:      "missing uri",
			mutate:    func(r *callbackRequest) { r.URI = "" },
			wantField: "uri",
		},
		{
			name:      "redirect with fragment",
			mutate:    func(r *callbackRequest) { r.Redirect = "http://127.0.0.1:8787/cb#frag" },
			wantField: "redirect",
		},
		{
			name:      "relative redirect",
			mutate:    func(r *callbackRequest) { r.Redirect = "/oauth/callback" },
			wantField: "redirect",
		},
		{
			name:      "unbalanced template",
			mutate:    func(r *callbackRequest) { r.Template = "{{date}-{{id}}" },
			wantField: "template",
		},
		{
			name:      "unknown storage method",
			mutate:    func(r *callbackRequest) { r.Method = "daily" },
			wantField: "method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := v.Validate(req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.wantField)
		})
	}
}

func TestValidator_RedirectAcceptsLoopback(t *testing.T) {
	v := validation.New()
	req := validRequest()
	req.Redirect = "http://127.0.0.1:8787/oauth/callback"
	assert.NoError(t, v.Validate(req))
}

func TestValidator_NestedFieldPath(t *testing.T) {
	type inner struct {
		Port string `validate:"required,numeric"`
	}
	type outer struct {
		Server inner
	}

	err := validation.New().Validate(outer{Server: inner{Port: "http"}})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, map[string]string{"Server.Port": "must be numeric"}, domainErr.Details)
}
