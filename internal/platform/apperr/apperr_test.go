package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("venue mall: %w", ErrNotFound), http.StatusNotFound},
		{ErrForbidden, http.StatusForbidden},
		{ErrInvalidToken, http.StatusUnauthorized},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("entry 3: %w", ErrMalformedJournalEntry), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), "%v", c.err)
	}
}

func TestInconsistencyError_Is(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("migrate: %w", &InconsistencyError{Slug: "mall", Moved: []string{"a", "b"}, Cause: cause})

	assert.True(t, errors.Is(err, ErrPathMigrationInconsistency))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))

	var ie *InconsistencyError
	assert.True(t, errors.As(err, &ie))
	assert.Equal(t, "mall", ie.Slug)
	assert.Contains(t, err.Error(), "2 file(s) moved")
}

func TestInconsistencyError_HidesNotFoundCause(t *testing.T) {
	cause := fmt.Errorf("unit R1: %w", ErrNotFound)
	err := &InconsistencyError{Slug: "mall", Moved: []string{"a"}, Cause: cause}

	assert.True(t, errors.Is(err, ErrPathMigrationInconsistency))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Contains(t, err.Error(), "unit R1: not found")
}
