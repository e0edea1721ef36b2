package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")

	testCases := []struct {
		name    string
		err     error
		kind    Kind
		status  int
		message string
		unwraps error
	}{
		{"validation", Validation("eventId is required"), KindValidation, http.StatusBadRequest, "eventId is required", nil},
		{"unavailable wrapped twice", fmt.Errorf("listing: %w", Unavailable(cause)), KindUpstreamUnavailable, http.StatusServiceUnavailable, "check-in service unavailable", cause},
		{"auth expired", AuthExpired(cause), KindUpstreamAuthExpired, http.StatusUnauthorized, "check-in service authorization expired", cause},
		{"not found", NotFound("Security code not found"), KindNotFound, http.StatusNotFound, "Security code not found", nil},
		{"plain error", cause, KindInternal, http.StatusInternalServerError, "internal error", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.status, HTTPStatus(KindOf(tc.err)))
			assert.Equal(t, tc.message, Message(tc.err))
			if tc.unwraps != nil {
				assert.ErrorIs(t, tc.err, tc.unwraps)
			}
		})
	}
}
