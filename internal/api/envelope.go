package api

import (
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is bumped whenever the envelope shape changes.
const EnvelopeVersion = 1

// APIEnvelope wraps every response body.
type APIEnvelope struct { //nolint:revive // matches APIError
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer is a huma.Transformer that wraps success bodies in
// {"success": true, "data": ...} and errors in {"success": false, "error": ...}.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch e := v.(type) {
	case *APIError:
		return APIEnvelope{
			Version: EnvelopeVersion,
			Error:   e.Message,
			Code:    e.Code,
			Details: e.Details,
		}, nil
	case error:
		return APIEnvelope{Version: EnvelopeVersion, Error: e.Error()}, nil
	}

	if code, err := strconv.Atoi(status); err == nil && code >= http.StatusBadRequest {
		return APIEnvelope{Version: EnvelopeVersion, Error: http.StatusText(code)}, nil
	}

	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: true,
		Data:    v,
	}, nil
}
