package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Sentinel errors used for categorization across the crawler.
var (
	ErrRequestFailed    = errors.New("request failed after all attempts") // Wraps the last transport error
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrParsing          = errors.New("parsing error") // Wraps URL/HTML parse errors
	ErrDatabase         = errors.New("database error")
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrInvalidState     = errors.New("operation not valid in current crawl state")
	ErrConfigValidation = errors.New("configuration validation error")
)

// CategorizeError maps an error to a category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRequestFailed):
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "RequestFailed_NetworkTimeout"
		}
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
			return "RequestFailed_NetworkTimeout"
		case strings.Contains(msg, "connection refused"):
			return "RequestFailed_ConnectionRefused"
		case strings.Contains(msg, "no such host"):
			return "RequestFailed_DNSLookup"
		}
		return "RequestFailed_NetworkOther"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrParsing):
		if strings.Contains(err.Error(), "URL") {
			return "Content_ParsingURL"
		}
		return "Content_ParsingHTML"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrInvalidState):
		return "Lifecycle_InvalidState"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(msg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(msg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(msg, "tls") || strings.Contains(msg, "certificate"):
		return "Network_TLS"
	case strings.Contains(msg, "reset by peer"):
		return "Network_ConnectionReset"
	}

	return "Unknown"
}
