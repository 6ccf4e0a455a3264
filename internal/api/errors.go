package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	ledgererrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/types"
)

// ActorHeader carries the address of the calling identity
const ActorHeader = "X-Actor-Address"

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// Common error codes
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError maps a service error onto its status and ledger code.
// Server-side failures are logged and reported without internal detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := ledgererrors.GetHTTPStatusCode(err)
	logger := logging.FromContext(r.Context()).WithError(err).
		WithField("kind", string(ledgererrors.KindOf(err)))

	if ledgererrors.IsSystemError(err) {
		logger.Error("Request failed")
		respondError(w, status, string(ledgererrors.KindOf(err)), "An internal error occurred", nil)
		return
	}
	if ledgererrors.IsUserError(err) {
		logger.Debug("Request rejected")
	}

	svcErr := ledgererrors.Categorize(err).ToServiceError()
	respondError(w, status, svcErr.Code, svcErr.Message, svcErr.Details)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// actorFromRequest returns the caller identity from the actor header
func actorFromRequest(w http.ResponseWriter, r *http.Request) (types.Address, bool) {
	raw := r.Header.Get(ActorHeader)
	if raw == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, fmt.Sprintf("%s header required", ActorHeader), nil)
		return types.ZeroAddress, false
	}

	actor, err := types.ParseAddress(raw)
	if err != nil {
		respondServiceError(w, r, err)
		return types.ZeroAddress, false
	}
	return actor, true
}

// uintVar parses a non-negative integer path variable
func uintVar(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	raw := mux.Vars(r)[name]
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondServiceError(w, r, ledgererrors.NewInvalidInputError(name, "must be a non-negative integer"))
		return 0, false
	}
	return v, true
}

func portfolioIDVar(w http.ResponseWriter, r *http.Request) (types.PortfolioID, bool) {
	v, ok := uintVar(w, r, "id")
	return types.PortfolioID(v), ok
}
