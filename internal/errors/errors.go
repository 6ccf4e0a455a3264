// Package errors defines the ledger error taxonomy and its HTTP categorization.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/portfolio-ledger/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryProvider represents height/identity provider errors
	CategoryProvider ErrorCategory = "provider"
)

// Kind is the stable code of a ledger failure
type Kind string

const (
	KindNotAuthorized          Kind = "NOT_AUTHORIZED"
	KindPortfolioNotFound      Kind = "PORTFOLIO_NOT_FOUND"
	KindInsufficientBalance    Kind = "INSUFFICIENT_BALANCE"
	KindInvalidToken           Kind = "INVALID_TOKEN"
	KindRebalanceFailed        Kind = "REBALANCE_FAILED"
	KindPortfolioAlreadyExists Kind = "PORTFOLIO_ALREADY_EXISTS"
	KindInvalidPercentage      Kind = "INVALID_PERCENTAGE"
	KindMaxTokensExceeded      Kind = "MAX_TOKENS_EXCEEDED"
	KindLengthMismatch         Kind = "LENGTH_MISMATCH"
	KindUserStorageFull        Kind = "USER_STORAGE_FULL"
	KindInvalidTokenID         Kind = "INVALID_TOKEN_ID"
	KindInactivePortfolio      Kind = "INACTIVE_PORTFOLIO"
	KindInvalidTokenCount      Kind = "INVALID_TOKEN_COUNT"
	KindIndexCapacityExceeded  Kind = "INDEX_CAPACITY_EXCEEDED"

	KindInvalidInput       Kind = "INVALID_INPUT"
	KindInternal           Kind = "INTERNAL_ERROR"
	KindDatabase           Kind = "DATABASE_ERROR"
	KindCache              Kind = "CACHE_ERROR"
	KindProvider           Kind = "PROVIDER_ERROR"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
)

type kindSpec struct {
	category ErrorCategory
	status   int
	message  string
}

var kinds = map[Kind]kindSpec{
	KindNotAuthorized:          {CategoryAuthorization, http.StatusForbidden, "caller is not authorized"},
	KindPortfolioNotFound:      {CategoryNotFound, http.StatusNotFound, "portfolio not found"},
	KindInsufficientBalance:    {CategoryValidation, http.StatusUnprocessableEntity, "insufficient balance"},
	KindInvalidToken:           {CategoryValidation, http.StatusBadRequest, "invalid token"},
	KindRebalanceFailed:        {CategorySystem, http.StatusInternalServerError, "rebalance failed"},
	KindPortfolioAlreadyExists: {CategoryConflict, http.StatusConflict, "portfolio already exists"},
	KindInvalidPercentage:      {CategoryValidation, http.StatusBadRequest, "invalid percentage"},
	KindMaxTokensExceeded:      {CategoryValidation, http.StatusBadRequest, "too many tokens"},
	KindLengthMismatch:         {CategoryValidation, http.StatusBadRequest, "tokens and percentages differ in length"},
	KindUserStorageFull:        {CategoryConflict, http.StatusConflict, "owner portfolio storage is full"},
	KindInvalidTokenID:         {CategoryValidation, http.StatusBadRequest, "invalid token slot"},
	KindInactivePortfolio:      {CategoryConflict, http.StatusConflict, "portfolio is inactive"},
	KindInvalidTokenCount:      {CategoryValidation, http.StatusBadRequest, "invalid token count"},
	KindIndexCapacityExceeded:  {CategoryConflict, http.StatusConflict, "owner index capacity exceeded"},
	KindInvalidInput:           {CategoryUserInput, http.StatusBadRequest, "invalid input"},
	KindInternal:               {CategorySystem, http.StatusInternalServerError, "internal error"},
	KindDatabase:               {CategoryDatabase, http.StatusInternalServerError, "database error"},
	KindCache:                  {CategoryCache, http.StatusInternalServerError, "cache error"},
	KindProvider:               {CategoryProvider, http.StatusBadGateway, "provider error"},
	KindServiceUnavailable:     {CategorySystem, http.StatusServiceUnavailable, "service unavailable"},
}

// Sentinels for errors.Is comparisons. Only Kind is compared.
var (
	ErrNotAuthorized          = &LedgerError{Kind: KindNotAuthorized}
	ErrPortfolioNotFound      = &LedgerError{Kind: KindPortfolioNotFound}
	ErrInsufficientBalance    = &LedgerError{Kind: KindInsufficientBalance}
	ErrInvalidToken           = &LedgerError{Kind: KindInvalidToken}
	ErrRebalanceFailed        = &LedgerError{Kind: KindRebalanceFailed}
	ErrPortfolioAlreadyExists = &LedgerError{Kind: KindPortfolioAlreadyExists}
	ErrInvalidPercentage      = &LedgerError{Kind: KindInvalidPercentage}
	ErrMaxTokensExceeded      = &LedgerError{Kind: KindMaxTokensExceeded}
	ErrLengthMismatch         = &LedgerError{Kind: KindLengthMismatch}
	ErrUserStorageFull        = &LedgerError{Kind: KindUserStorageFull}
	ErrInvalidTokenID         = &LedgerError{Kind: KindInvalidTokenID}
	ErrInactivePortfolio      = &LedgerError{Kind: KindInactivePortfolio}
	ErrInvalidTokenCount      = &LedgerError{Kind: KindInvalidTokenCount}
	ErrIndexCapacityExceeded  = &LedgerError{Kind: KindIndexCapacityExceeded}
)

// LedgerError represents a ledger failure with category and HTTP status code
type LedgerError struct {
	Category   ErrorCategory
	StatusCode int
	Kind       Kind
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = kinds[e.Kind].message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// Is matches any LedgerError of the same Kind. A MaxTokensExceeded failure is
// also an InvalidTokenCount failure.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindMaxTokensExceeded && t.Kind == KindInvalidTokenCount
}

// ToServiceError converts to the wire representation
func (e *LedgerError) ToServiceError() *types.ServiceError {
	msg := e.Message
	if msg == "" {
		msg = kinds[e.Kind].message
	}
	return &types.ServiceError{
		Code:    string(e.Kind),
		Message: msg,
		Details: e.Details,
	}
}

// New creates a ledger error of the given kind
func New(kind Kind, message string, details map[string]interface{}) *LedgerError {
	ks, ok := kinds[kind]
	if !ok {
		ks = kinds[KindInternal]
	}
	if message == "" {
		message = ks.message
	}
	return &LedgerError{
		Category:   ks.category,
		StatusCode: ks.status,
		Kind:       kind,
		Message:    message,
		Details:    details,
	}
}

// Wrap creates a ledger error of the given kind caused by err
func Wrap(kind Kind, message string, cause error) *LedgerError {
	e := New(kind, message, nil)
	e.Cause = cause
	return e
}

// NewNotAuthorizedError reports an actor acting on state it does not own
func NewNotAuthorizedError(actor types.Address, action string) *LedgerError {
	return New(KindNotAuthorized, fmt.Sprintf("%s is not authorized to %s", actor.Hex(), action), map[string]interface{}{
		"actor":  actor.Hex(),
		"action": action,
	})
}

// NewPortfolioNotFoundError reports a missing portfolio
func NewPortfolioNotFoundError(id types.PortfolioID) *LedgerError {
	return New(KindPortfolioNotFound, fmt.Sprintf("portfolio not found: %d", id), map[string]interface{}{
		"portfolioId": id,
	})
}

// NewInvalidPercentageError reports a weight bound or sum failure
func NewInvalidPercentageError(reason string, details map[string]interface{}) *LedgerError {
	return New(KindInvalidPercentage, fmt.Sprintf("invalid percentage: %s", reason), details)
}

// NewInvalidTokenIDError reports a slot outside the portfolio
func NewInvalidTokenIDError(id types.PortfolioID, slot types.Slot) *LedgerError {
	return New(KindInvalidTokenID, fmt.Sprintf("invalid token slot %d for portfolio %d", slot, id), map[string]interface{}{
		"portfolioId": id,
		"slot":        slot,
	})
}

// NewInvalidInputError reports a malformed request parameter
func NewInvalidInputError(param string, reason string) *LedgerError {
	return New(KindInvalidInput, fmt.Sprintf("invalid parameter '%s': %s", param, reason), map[string]interface{}{
		"parameter": param,
		"reason":    reason,
	})
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *LedgerError {
	return Wrap(KindInternal, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *LedgerError {
	e := Wrap(KindDatabase, fmt.Sprintf("database error during %s", operation), cause)
	e.Details = map[string]interface{}{"operation": operation}
	return e
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *LedgerError {
	e := Wrap(KindCache, fmt.Sprintf("cache error during %s", operation), cause)
	e.Details = map[string]interface{}{"operation": operation}
	return e
}

// NewProviderError creates a height provider error
func NewProviderError(provider string, cause error) *LedgerError {
	e := Wrap(KindProvider, fmt.Sprintf("provider error: %s", provider), cause)
	e.Details = map[string]interface{}{"provider": provider}
	return e
}

// Categorize categorizes an existing error
func Categorize(err error) *LedgerError {
	if err == nil {
		return nil
	}

	var ledgerErr *LedgerError
	if stderrors.As(err, &ledgerErr) {
		if ledgerErr.StatusCode == 0 {
			categorized := New(ledgerErr.Kind, ledgerErr.Message, ledgerErr.Details)
			categorized.Cause = ledgerErr.Cause
			return categorized
		}
		return ledgerErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *LedgerError {
	switch err.Code {
	case "INVALID_ADDRESS", "INVALID_ADDRESS_FORMAT":
		return &LedgerError{
			Category:   CategoryUserInput,
			StatusCode: http.StatusBadRequest,
			Kind:       Kind(err.Code),
			Message:    err.Message,
			Details:    err.Details,
		}
	default:
		e := New(Kind(err.Code), err.Message, err.Details)
		e.Kind = Kind(err.Code)
		return e
	}
}

// KindOf returns the kind of err, or KindInternal when err is not a ledger error
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Categorize(err).Kind
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryProvider, CategoryDatabase, CategoryCache:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}
