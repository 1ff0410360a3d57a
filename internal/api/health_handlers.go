package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns daemon health with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy or degraded"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"account": s.checkAccount(),
		"sync":    s.checkSync(),
		"events":  s.checkEvents(),
	}

	overall := "healthy"
	for _, c := range components {
		if c.Status != "healthy" {
			overall = "degraded"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

func (s *Server) checkAccount() ComponentHealth {
	st := s.services.Auth.Status()
	switch {
	case !st.ClientConfigured:
		return ComponentHealth{Status: "degraded", Message: "client ID not configured"}
	case !st.Authenticated:
		return ComponentHealth{Status: "degraded", Message: "account not connected"}
	default:
		return ComponentHealth{Status: "healthy"}
	}
}

func (s *Server) checkSync() ComponentHealth {
	st := s.services.Sync.Status()
	if st.ConsecutiveFailures > 0 {
		return ComponentHealth{
			Status:  "degraded",
			Message: strconv.Itoa(st.ConsecutiveFailures) + " consecutive failures",
		}
	}
	if st.InProgress {
		return ComponentHealth{Status: "healthy", Message: "sync running"}
	}
	return ComponentHealth{Status: "healthy"}
}

// checkEvents verifies the event stream is configured.
func (s *Server) checkEvents() ComponentHealth {
	if s.services.Events == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "event stream not configured",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: formatSSEStatus(s.services.Events.ClientCount()),
	}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return strconv.Itoa(count) + " connected clients"
	}
}
