package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vaultmark/vaultmark/internal/auth"
	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/sse"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "authorize",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/authorize",
		Summary:     "Start authorization",
		Description: "Creates a pending authorization and returns the URL to open in a browser",
		Tags:        []string{"Auth"},
	}, s.handleAuthorize)

	huma.Register(s.api, huma.Operation{
		OperationID: "completeAuthorization",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/callback",
		Summary:     "Complete authorization",
		Description: "Completes the pending authorization with a redirect URI pasted by the user",
		Tags:        []string{"Auth"},
	}, s.handleCallback)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Log out",
		Description: "Revokes the access token and clears stored credentials",
		Tags:        []string{"Auth"},
	}, s.handleLogout)

	huma.Register(s.api, huma.Operation{
		OperationID: "authStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/status",
		Summary:     "Authorization status",
		Tags:        []string{"Auth"},
	}, s.handleAuthStatus)
}

// AuthorizeResponse is returned when an authorization starts.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url" doc:"URL to open in a browser"`
	State            string `json:"state" doc:"Anti-forgery state carried through the redirect"`
}

// AuthorizeOutput wraps the authorize response for Huma.
type AuthorizeOutput struct {
	Body AuthorizeResponse
}

// CallbackRequest carries a redirect URI.
type CallbackRequest struct {
	URI string `json:"uri" validate:"required" doc:"Full redirect URI including code and state"`
}

// CallbackInput wraps the callback request for Huma.
type CallbackInput struct {
	Body CallbackRequest
}

// MessageResponse is a simple success message response.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps a message response for huma.
type MessageOutput struct {
	Body MessageResponse
}

// AuthStatusOutput wraps the authorization status for Huma.
type AuthStatusOutput struct {
	Body auth.Status
}

func (s *Server) handleAuthorize(ctx context.Context, _ *struct{}) (*AuthorizeOutput, error) {
	req, err := s.services.Auth.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &AuthorizeOutput{Body: AuthorizeResponse{
		AuthorizationURL: req.AuthorizationURL,
		State:            req.State,
	}}, nil
}

func (s *Server) handleCallback(ctx context.Context, input *CallbackInput) (*MessageOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	if err := s.completeAuth(ctx, input.Body.URI); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: connectedMessage}}, nil
}

func (s *Server) handleLogout(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	s.services.Auth.Revoke(ctx)
	return &MessageOutput{Body: MessageResponse{Message: "Logged out"}}, nil
}

func (s *Server) handleAuthStatus(_ context.Context, _ *struct{}) (*AuthStatusOutput, error) {
	return &AuthStatusOutput{Body: s.services.Auth.Status()}, nil
}

const connectedMessage = "Account connected. Bookmarks will start syncing shortly."

// completeAuth finishes the pending authorization, publishes the outcome
// and lets the scheduler start the first import.
func (s *Server) completeAuth(ctx context.Context, callbackURI string) error {
	if err := s.services.Auth.Complete(ctx, callbackURI); err != nil {
		s.logger.Warn("authorization failed", "code", domainerrors.CodeOf(err))
		s.emit(sse.NewAuthEvent(sse.EventAuthFailed, sse.AuthEventData{
			Message: domainerrors.UserMessage(err),
			Code:    string(domainerrors.CodeOf(err)),
		}))
		return err
	}

	s.emit(sse.NewAuthEvent(sse.EventAuthCompleted, sse.AuthEventData{Message: connectedMessage}))
	s.services.Sync.Kick()
	return nil
}

func (s *Server) emit(e sse.Event) {
	if s.services.Events != nil {
		s.services.Events.Emit(e)
	}
}
