package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("add member: %w", ErrRoomFull)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, http.StatusConflict, HTTPStatusFromError(err))
}

func TestUserMessageHidesInternalErrors(t *testing.T) {
	err := fmt.Errorf("query failed: %w", fmt.Errorf("connection reset"))
	assert.Equal(t, KindInternal, KindOf(err))
	assert.NotContains(t, UserMessage(err), "connection reset")
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromError(err))
}

func TestUserMessageForSentinel(t *testing.T) {
	err := fmt.Errorf("send: %w", ErrMuted)
	assert.Equal(t, ErrMuted.Error(), UserMessage(err))
	assert.Equal(t, http.StatusForbidden, HTTPStatusFromError(err))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		ErrRoomNotFound:      http.StatusNotFound,
		ErrInvalidToken:      http.StatusUnauthorized,
		ErrNotRoomCreator:    http.StatusForbidden,
		ErrRoomNameRequired:  http.StatusBadRequest,
		ErrRateLimited:       http.StatusTooManyRequests,
		ErrRoomNameDuplicate: http.StatusConflict,
	}
	for err, status := range cases {
		assert.Equal(t, status, HTTPStatusFromError(err), err.Error())
	}
}
