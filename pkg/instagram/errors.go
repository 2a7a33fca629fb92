package instagram

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken means the token endpoint answered without an access token
	ErrNoToken = errors.New("token response contained no access token")
	// ErrTokenExpired is the provider's expired-credential signal (code 190)
	ErrTokenExpired = errors.New("access token is expired")
	// ErrRefreshFailed means the refresh endpoint did not return a new token
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrFetchFailed means a media fetch failed for a reason other than expiry
	ErrFetchFailed = errors.New("media fetch failed")
	// ErrDispatchFailed means a message send was rejected by the provider
	ErrDispatchFailed = errors.New("message dispatch failed")
)

const expiredTokenCode = 190

// APIError is the error object carried in Graph API response bodies
type APIError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	ErrorType string `json:"error_type"` // the oauth endpoint uses this field instead of type
}

func (e *APIError) Error() string {
	kind := e.Type
	if kind == "" {
		kind = e.ErrorType
	}
	return fmt.Sprintf("instagram api error: %s (type=%s code=%d)", e.Message, kind, e.Code)
}

// Expired reports whether the provider flagged the credential as expired
func (e *APIError) Expired() bool {
	return e.Code == expiredTokenCode
}

// IsTokenExpired reports whether err carries the provider's expired-token
// signal, either as the sentinel or as an APIError with code 190.
func IsTokenExpired(err error) bool {
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Expired()
	}
	return false
}
