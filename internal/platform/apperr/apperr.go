// Package apperr holds the error kinds shared by every module. Modules wrap
// these with fmt.Errorf("...: %w", err) and callers test with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidInput          = errors.New("invalid input")
	ErrMalformedJournalEntry = errors.New("malformed journal entry")
	ErrArtifactWrite         = errors.New("final artifact write failed")

	ErrPathMigrationInconsistency = errors.New("path migration inconsistency")
)

// InconsistencyError reports files that were moved while the matching record
// update failed. Nothing is rolled back; an operator has to repair the venue.
type InconsistencyError struct {
	Slug  string
	Moved []string
	Cause error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("venue %q: %d file(s) moved but record update failed: %v", e.Slug, len(e.Moved), e.Cause)
}

func (e *InconsistencyError) Is(target error) bool {
	return target == ErrPathMigrationInconsistency
}

// Unwrap exposes the cause unless it is a not-found, which callers would
// otherwise take for a venue that has nothing to migrate.
func (e *InconsistencyError) Unwrap() error {
	if errors.Is(e.Cause, ErrNotFound) {
		return nil
	}
	return e.Cause
}

// HTTPStatus maps an error kind to the response status handlers send.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPathMigrationInconsistency):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedJournalEntry):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
