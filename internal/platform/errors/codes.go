package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Ceremony errors
	CodeCeremonyNotFound        Code = "CEREMONY_NOT_FOUND"
	CodeCeremonyExpired         Code = "CEREMONY_EXPIRED"
	CodeCeremonySubjectMismatch Code = "CEREMONY_SUBJECT_MISMATCH"
	CodeVerificationFailed      Code = "VERIFICATION_FAILED"

	// Identity errors
	CodeUserNotFound        Code = "USER_NOT_FOUND"
	CodeUserNoCredentials   Code = "USER_NO_CREDENTIALS"
	CodeUserEmptyUsername   Code = "USER_EMPTY_USERNAME"
	CodeUserInvalidUsername Code = "USER_INVALID_USERNAME"

	// Token errors
	CodeTokenInvalid Code = "TOKEN_INVALID"
	CodeTokenExpired Code = "TOKEN_EXPIRED"

	// Poll errors
	CodePollNotFound             Code = "POLL_NOT_FOUND"
	CodePollClosed               Code = "POLL_CLOSED"
	CodePollPaused               Code = "POLL_PAUSED"
	CodePollEnded                Code = "POLL_ENDED"
	CodePollInvalidOption        Code = "POLL_INVALID_OPTION"
	CodePollAlreadyVoted         Code = "POLL_ALREADY_VOTED"
	CodePollInvalidConfiguration Code = "POLL_INVALID_CONFIGURATION"
	CodePollInvalidTransition    Code = "POLL_INVALID_TRANSITION"
	CodePollUnauthorized         Code = "POLL_UNAUTHORIZED"
	CodePollCannotModifyClosed   Code = "POLL_CANNOT_MODIFY_CLOSED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeUserEmptyUsername,
		CodeUserInvalidUsername,
		CodeCeremonySubjectMismatch,
		CodePollInvalidOption,
		CodePollInvalidConfiguration:
		return http.StatusBadRequest

	// Unauthorized - missing or failed authentication
	case CodeVerificationFailed,
		CodeCeremonyNotFound,
		CodeCeremonyExpired,
		CodeTokenInvalid,
		CodeTokenExpired:
		return http.StatusUnauthorized

	// Forbidden - state or ownership disallows the operation
	case CodePollClosed,
		CodePollPaused,
		CodePollEnded,
		CodePollInvalidTransition,
		CodePollUnauthorized,
		CodePollCannotModifyClosed:
		return http.StatusForbidden

	// NotFound - missing records
	case CodeUserNotFound,
		CodeUserNoCredentials,
		CodePollNotFound,
		CodeNotFound:
		return http.StatusNotFound

	// Conflict - duplicate effects
	case CodePollAlreadyVoted:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
