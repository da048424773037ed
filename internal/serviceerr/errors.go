// Package serviceerr defines the errors surfaced by the StudyGuide web process.
// Each error carries a code and maps to an HTTP status for the page handlers.
package serviceerr

import "net/http"

type Code string

const (
	CodeInvalidRequest       Code = "invalid_request"
	CodeNotFound             Code = "not_found"
	CodeUnauthorized         Code = "unauthorized"
	CodeMissingConfiguration Code = "missing_configuration"
	CodeNoCookieStore        Code = "no_cookie_store"
	CodeImageSourceForbidden Code = "image_source_forbidden"
	CodeInvalidFormToken     Code = "invalid_form_token"
)

type Error struct {
	Err         Code
	Description string
}

var (
	ErrInvalidRequest       = &Error{Err: CodeInvalidRequest, Description: "malformed request"}
	ErrNotFound             = &Error{Err: CodeNotFound, Description: "not found"}
	ErrUnauthorized         = &Error{Err: CodeUnauthorized, Description: "invalid credentials or session"}
	ErrMissingConfiguration = &Error{Err: CodeMissingConfiguration, Description: "required configuration is not set"}
	ErrNoCookieStore        = &Error{Err: CodeNoCookieStore, Description: "no cookie store in request context"}
	ErrImageSourceForbidden = &Error{Err: CodeImageSourceForbidden, Description: "image source is not allowed"}
	ErrInvalidFormToken     = &Error{Err: CodeInvalidFormToken, Description: "form token is missing or invalid"}
)

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// HTTPStatus returns the status a page handler answers with for this error.
func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeImageSourceForbidden:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvalidFormToken:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
