package service

import (
	"net/http"

	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
)

// Check-in error taxonomy. Handlers render these as-is; callers match with errors.Is.
var (
	ErrTokenInvalid       = apperrors.NewDomainError("TOKEN_INVALID", "token is invalid", http.StatusBadRequest, nil)
	ErrTokenExpired       = apperrors.NewDomainError("TOKEN_EXPIRED", "token has expired", http.StatusGone, nil)
	ErrTokenAlreadyUsed   = apperrors.NewDomainError("TOKEN_ALREADY_USED", "token has already been used", http.StatusConflict, nil)
	ErrActorNotFound      = apperrors.NewDomainError("ACTOR_NOT_FOUND", "actor not found", http.StatusNotFound, nil)
	ErrInvalidCredentials = apperrors.NewDomainError("INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized, nil)
	ErrRecordConflict     = apperrors.NewDomainError("RECORD_CONFLICT", "an open record already exists", http.StatusConflict, nil)
	ErrNoActiveSession    = apperrors.NewDomainError("NO_ACTIVE_SESSION", "no active record to close", http.StatusConflict, nil)
	ErrScannerFailed      = apperrors.NewDomainError("SCANNER_FAILED", "scan failed; use manual entry", http.StatusUnprocessableEntity, nil)
	ErrSessionRevoked     = apperrors.NewDomainError("SESSION_REVOKED", "session is no longer active", http.StatusUnauthorized, nil)
	ErrRecordNotFound     = apperrors.NewDomainError("RECORD_NOT_FOUND", "attendance record not found", http.StatusNotFound, nil)
	ErrNotFlagged         = apperrors.NewDomainError("RECORD_NOT_FLAGGED", "record is not awaiting review", http.StatusConflict, nil)
)

func validationError(field, message string) error {
	return apperrors.NewValidationError("validation failed", map[string]any{field: message})
}
