package flow

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-casework"
)

const (
	GRPCCodeAborted            = "Aborted"
	GRPCCodeFailedPrecondition = "FailedPrecondition"
	GRPCCodeInternal           = "Internal"
	GRPCCodeInvalidArgument    = "InvalidArgument"
	GRPCCodeNotFound           = "NotFound"
	GRPCCodePermissionDenied   = "PermissionDenied"
	GRPCCodeUnavailable        = "Unavailable"
)

const rpcCodeInternal = "CASE_INTERNAL"

// TransportErrorMapping defines protocol-level mappings for execution errors.
type TransportErrorMapping struct {
	RuntimeCode string
	HTTPStatus  int
	GRPCCode    string
	RPCCode     string
}

// RPCErrorEnvelope is the RPC transport error shape.
type RPCErrorEnvelope struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
}

var transportMappings = map[string]TransportErrorMapping{
	casework.ErrCodeUnknownEvent:               {HTTPStatus: http.StatusNotFound, GRPCCode: GRPCCodeNotFound},
	casework.ErrCodeCaseNotFound:               {HTTPStatus: http.StatusNotFound, GRPCCode: GRPCCodeNotFound},
	casework.ErrCodeForbidden:                  {HTTPStatus: http.StatusForbidden, GRPCCode: GRPCCodePermissionDenied},
	casework.ErrCodeInvalidStageForEvent:       {HTTPStatus: http.StatusConflict, GRPCCode: GRPCCodeFailedPrecondition},
	casework.ErrCodeValidationFailed:           {HTTPStatus: http.StatusUnprocessableEntity, GRPCCode: GRPCCodeInvalidArgument},
	casework.ErrCodeGuardFailed:                {HTTPStatus: http.StatusUnprocessableEntity, GRPCCode: GRPCCodeFailedPrecondition},
	casework.ErrCodeVersionConflict:            {HTTPStatus: http.StatusConflict, GRPCCode: GRPCCodeAborted},
	casework.ErrCodeNotificationDeliveryFailed: {HTTPStatus: http.StatusBadGateway, GRPCCode: GRPCCodeUnavailable},
}

// MapError maps taxonomy codes to transport protocol categories.
func MapError(err error) TransportErrorMapping {
	code := strings.TrimSpace(casework.ErrorCode(err))
	if mapping, ok := transportMappings[code]; ok {
		mapping.RuntimeCode = code
		mapping.RPCCode = code
		return mapping
	}
	return TransportErrorMapping{
		RuntimeCode: code,
		HTTPStatus:  http.StatusInternalServerError,
		GRPCCode:    GRPCCodeInternal,
		RPCCode:     rpcCodeInternal,
	}
}

// HTTPStatusForError returns the mapped HTTP status code for an execution error.
func HTTPStatusForError(err error) int {
	return MapError(err).HTTPStatus
}

// HTTPStatusForCode returns the HTTP status for a taxonomy code, as found in
// a Response error envelope.
func HTTPStatusForCode(code string) int {
	if mapping, ok := transportMappings[strings.TrimSpace(code)]; ok {
		return mapping.HTTPStatus
	}
	return http.StatusInternalServerError
}

// GRPCCodeForError returns the mapped gRPC status code string for an execution error.
func GRPCCodeForError(err error) string {
	return MapError(err).GRPCCode
}

// RPCErrorForError returns the caller-facing envelope. Forbidden and unknown
// event errors carry only the generic denial text.
func RPCErrorForError(err error) *RPCErrorEnvelope {
	if err == nil {
		return nil
	}
	mapping := MapError(err)
	messages := casework.DisplayMessages(err)
	env := &RPCErrorEnvelope{Code: mapping.RPCCode, Messages: messages}
	if len(messages) > 0 {
		env.Message = messages[0]
	}
	if mapping.RPCCode == rpcCodeInternal {
		env.Message = "internal error"
		env.Messages = nil
	}
	return env
}
