package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/employee-console/internal/shared"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		nil:                                       http.StatusOK,
		shared.ErrNotFound:                        http.StatusNotFound,
		fmt.Errorf("wrap: %w", shared.ErrForbidden): http.StatusForbidden,
		shared.ErrUnauthorized:                    http.StatusUnauthorized,
		shared.ErrUnavailable:                     http.StatusServiceUnavailable,
		shared.ErrMalformedResponse:               http.StatusBadGateway,
		ErrValidation:                             http.StatusBadRequest,
		errors.New("boom"):                        http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), fmt.Sprint(err))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("database password is hunter2"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Empty(t, problem.Detail)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
