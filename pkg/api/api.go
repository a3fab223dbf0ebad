// Package api provides standardized helpers for HTTP and API Gateway
// responses.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	apperrors "engram-backend/pkg/errors"
)

// ErrorResponse is the standardized error body
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// Success writes a JSON response with the given status
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error writes a standardized JSON error body
func Error(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// HandleError maps an application error onto an HTTP status and writes it
func HandleError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// StatusFor returns the HTTP status an error maps to
func StatusFor(err error) int {
	status, _ := classify(err)
	return status
}

func classify(err error) (int, ErrorResponse) {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Type: string(apperrors.ErrorTypeValidation)}
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Type: string(apperrors.ErrorTypeNotFound)}
	case apperrors.IsConflict(err):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Type: string(apperrors.ErrorTypeConflict)}
	case apperrors.IsUnauthorized(err):
		return http.StatusForbidden, ErrorResponse{Error: err.Error(), Type: string(apperrors.ErrorTypeUnauthorized)}
	case apperrors.IsTransient(err):
		return http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Type: string(apperrors.ErrorTypeTransient)}
	default:
		// Internal details stay out of the response body
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Type: string(apperrors.ErrorTypeInternal)}
	}
}

// GatewayResponse creates a valid APIGatewayProxyResponse
func GatewayResponse(statusCode int, body string) (events.APIGatewayProxyResponse, error) {
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}, nil
}

// GatewaySuccess formats a successful JSON response for API Gateway
func GatewaySuccess(statusCode int, data interface{}) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return GatewayError(http.StatusInternalServerError, "internal error"), err
	}
	return GatewayResponse(statusCode, string(body))
}

// GatewayError formats a JSON error response for API Gateway
func GatewayError(statusCode int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(ErrorResponse{Error: message})
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
