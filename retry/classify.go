package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorType is the category of a failed attempt, used in log output
type ErrorType string

const (
	ErrorTypeTimeout  ErrorType = "timeout"
	ErrorTypeNetwork  ErrorType = "network"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeProtocol ErrorType = "protocol"
	ErrorTypeEmpty    ErrorType = "empty_result"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// errEmptyResult marks a task that returned no error but a nil value
var errEmptyResult = errors.New("task returned no result")

// ClassifyError determines the category of an attempt error
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	if errors.Is(err, errEmptyResult) {
		return ErrorTypeEmpty
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var httpErr interface{ StatusCode() int }
	if errors.As(err, &httpErr) {
		switch code := httpErr.StatusCode(); {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return ErrorTypeAuth
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return ErrorTypeTimeout
		default:
			return ErrorTypeProtocol
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorTypeNetwork
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrorTypeNetwork
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "timeout"),
		strings.Contains(errMsg, "timed out"),
		strings.Contains(errMsg, "deadline exceeded"):
		return ErrorTypeTimeout
	case strings.Contains(errMsg, "authentication"),
		strings.Contains(errMsg, "password"),
		strings.Contains(errMsg, "noauth"),
		strings.Contains(errMsg, "permission denied"):
		return ErrorTypeAuth
	case strings.Contains(errMsg, "connection refused"),
		strings.Contains(errMsg, "connection reset"),
		strings.Contains(errMsg, "no such host"),
		strings.Contains(errMsg, "network"):
		return ErrorTypeNetwork
	}

	return ErrorTypeUnknown
}
