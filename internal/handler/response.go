package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pmv/internal/domain"
	"pmv/internal/repository"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	_ = c.Error(err)
	c.JSON(code, ErrorResponse{Error: err.Error(), Kind: string(domain.KindOf(err))})
}

// respondBadRequest rejects a malformed request body.
func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: string(domain.KindInvalidArguments)})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps error kinds to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidArguments, domain.KindCorruptedInput:
		return http.StatusBadRequest
	case domain.KindPairingNotFound:
		return http.StatusNotFound
	case domain.KindVehicleUnavailable, domain.KindProcedural:
		return http.StatusConflict
	case domain.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.KindConnectivity:
		return http.StatusServiceUnavailable
	}

	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
