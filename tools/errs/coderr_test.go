package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapMsgKeepsCode(t *testing.T) {
	err := ErrRecordNotFound.WrapMsg("session not found", "session_id", "s1")
	require.Error(t, err)

	assert.Equal(t, RecordNotFoundError, CodeOf(err))
	assert.True(t, errors.Is(err, ErrRecordNotFound))
	assert.Contains(t, err.Error(), "session not found")
	assert.Contains(t, err.Error(), "session_id=s1")
}

func TestWithDetailAppends(t *testing.T) {
	e := ErrArgs.WithDetail("first").WithDetail("second")
	assert.Equal(t, ArgsError, e.Code)
	assert.Equal(t, "first, second", e.Detail)
	// 原值不被改动
	assert.Empty(t, ErrArgs.Detail)
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ServerInternalError, CodeOf(errors.New("boom")))
	assert.Equal(t, ServerInternalError, CodeOf(WrapMsg(errors.New("boom"), "ctx")))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrArgs.Wrap(), http.StatusBadRequest},
		{ErrNoPermission.Wrap(), http.StatusForbidden},
		{ErrRecordNotFound.Wrap(), http.StatusNotFound},
		{ErrRateLimited.Wrap(), http.StatusTooManyRequests},
		{ErrStoreUnavailable.Wrap(), http.StatusServiceUnavailable},
		{ErrUnauthorized.Wrap(), http.StatusUnauthorized},
		{ErrTokenExpired.Wrap(), http.StatusUnauthorized},
		{ErrInternalServer.Wrap(), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), "err=%v", c.err)
	}
}

func TestUnwrapReachesCodeError(t *testing.T) {
	inner := ErrUnauthorized.WrapMsg("bad credentials")
	outer := WrapMsg(inner, "login handler")

	assert.Equal(t, UnauthorizedError, CodeOf(outer))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(outer))
}
