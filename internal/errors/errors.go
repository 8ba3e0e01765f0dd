package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinels matched by StatusError.Is.
var (
	ErrForbidden = stderrors.New("forbidden")
	ErrNotFound  = stderrors.New("not found")
)

// API errors

// StatusError is returned for any response status the client does not
// accept as a transport success (everything other than 2xx and 400).
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("unexpected http status %s %s %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("unexpected http status %s %s %d: %s", e.Method, e.URL, e.Status, body)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// IsForbidden reports whether err carries a 403 response. The console treats
// a 403 from the current-user probe as "no session".
func IsForbidden(err error) bool {
	return stderrors.Is(err, ErrForbidden)
}

// IsNotFound reports whether err carries a 404 response.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.Status
	}
	return 0
}

type ErrDiscovery struct {
	Origin string
	Err    error
}

func (e *ErrDiscovery) Error() string {
	return fmt.Sprintf("failed to discover api url from %s: %v", e.Origin, e.Err)
}

func (e *ErrDiscovery) Unwrap() error {
	return e.Err
}

type ErrDecode struct {
	Operation string
	Err       error
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("failed to decode response for %s: %v", e.Operation, e.Err)
}

func (e *ErrDecode) Unwrap() error {
	return e.Err
}

// ValidationFailed wraps a validation error tree for callers that want a
// single error path instead of branching on a result.
type ValidationFailed struct {
	Errors fmt.Stringer
}

func (e *ValidationFailed) Error() string {
	if e.Errors == nil {
		return "validation errors"
	}
	return "validation errors:\n" + e.Errors.String()
}

// CLI errors

type ErrAccountUndetermined struct {
	Count int
}

func (e *ErrAccountUndetermined) Error() string {
	return fmt.Sprintf("account id could not be determined (%d accounts visible), pass --account-id", e.Count)
}

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}
