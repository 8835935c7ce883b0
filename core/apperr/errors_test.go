package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsMatchByCode(t *testing.T) {
	err := Validation("title and source are required")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("create: %w", err)
	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(wrapped))
}

func TestInternalHidesCause(t *testing.T) {
	err := Internal(sql.ErrConnDone)
	require.Error(t, err)
	assert.Equal(t, "internal server error", err.Message)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestAsFallsBackToInternal(t *testing.T) {
	e := As(errors.New("boom"))
	require.NotNil(t, e)
	assert.Equal(t, CodeInternal, e.Code)
	assert.Nil(t, As(nil))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound(CodeIncidentNotFound, "Incident with id 7 not found"), http.StatusNotFound},
		{NotFound("", "missing"), http.StatusNotFound},
		{Forbidden("nope"), http.StatusForbidden},
		{Validation("bad"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
	assert.True(t, IsNotFound(NotFound(CodeIncidentNotFound, "x")))
}
