package api

import (
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the response envelope format version.
const EnvelopeVersion = 1

// Envelope wraps every JSON response body.
type Envelope struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// EnvelopeTransformer wraps response bodies in an Envelope. Bodies of
// 4xx and 5xx responses go in the error field; everything else is data.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(Envelope); ok {
		return v, nil
	}
	if code, err := strconv.Atoi(status); err == nil && code >= http.StatusBadRequest {
		return Envelope{Version: EnvelopeVersion, Error: v}, nil
	}
	return Envelope{Version: EnvelopeVersion, Success: true, Data: v}, nil
}
