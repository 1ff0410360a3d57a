package api

import (
	"embed"
	"html/template"
	"net/http"

	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
)

//go:embed templates/*.html
var templates embed.FS

var callbackPage = template.Must(template.ParseFS(templates, "templates/callback.html"))

// callbackPageData contains data for the redirect landing page.
type callbackPageData struct {
	OK      bool
	Message string
	Code    string
}

func (s *Server) registerWebRoutes() {
	s.router.Get("/oauth/callback", s.handleOAuthCallback)
}

// handleOAuthCallback receives the provider's redirect when the redirect
// URI points at this daemon.
// GET /oauth/callback?code=...&state=...
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	data := callbackPageData{OK: true, Message: connectedMessage}
	status := http.StatusOK

	if err := s.completeAuth(r.Context(), r.URL.String()); err != nil {
		data = callbackPageData{
			Message: domainerrors.UserMessage(err),
			Code:    string(domainerrors.CodeOf(err)),
		}
		status = domainerrors.CodeOf(err).HTTPStatus()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, data); err != nil {
		s.logger.Error("failed to render callback page", "error", err)
	}
}
