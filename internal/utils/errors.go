package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrBackendNotConfigured returns an error when a backend instance is not configured.
func ErrBackendNotConfigured(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("backend not configured: %s", name),
		Suggestion: fmt.Sprintf("Add a %s entry to the backends section of your config file", name),
	}
}

// ErrBackendOffline returns an error when a backend is unreachable with smart suggestions.
func ErrBackendOffline(name, reason string) error {
	suggestion := getSmartSuggestion(reason)
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("backend %s is offline: %s", name, reason),
		Suggestion: suggestion,
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "i/o timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}

// ErrInvalidPriority returns an error for an invalid priority value.
func ErrInvalidPriority(priority int) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid priority: %d", priority),
		Suggestion: "Priority must be between 1 and 4 (4 = highest urgency)",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use date format YYYY-MM-DD (e.g., 2026-01-15)",
	}
}

// ErrNoBackendsAvailable returns an error when no backend instances are enabled.
func ErrNoBackendsAvailable() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("no backend instances enabled"),
		Suggestion: "Enable at least one backend in your config file and store its API token with 'terminalist credentials set'",
	}
}

// ErrCredentialsNotFound returns an error when credentials are missing.
func ErrCredentialsNotFound(backend, user string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("credentials not found for %s user %s", backend, user),
		Suggestion: fmt.Sprintf("Run 'terminalist credentials set %s' to store an API token", backend),
	}
}

// ErrAuthenticationFailed returns an error when authentication fails.
func ErrAuthenticationFailed(backend string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("authentication failed for %s", backend),
		Suggestion: "Verify your API token is correct and has not expired",
	}
}

// ValidatePriority validates that priority is within the remote model's
// range (1-4).
func ValidatePriority(priority int) error {
	if priority < 1 || priority > 4 {
		return ErrInvalidPriority(priority)
	}
	return nil
}
