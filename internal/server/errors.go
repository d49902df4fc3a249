package server

import (
	"errors"
	"net/http"

	"github.com/thiagokokada/gitrelay/internal/credentials"
	"github.com/thiagokokada/gitrelay/internal/git"
)

// ErrorCode extends git.ErrorCode with the connection level failures.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, credentials.ErrNoConnection):
		return "no-such-connection"
	case errors.Is(err, credentials.ErrRequestPending):
		return "credentials-pending"
	case errors.Is(err, credentials.ErrDisconnected):
		return "credentials-disconnected"
	case errors.Is(err, credentials.ErrNoPendingRequest):
		return "no-pending-credentials"
	default:
		return git.ErrorCode(err)
	}
}

func statusFor(code string) int {
	switch code {
	case "no-such-path", "no-such-connection":
		return http.StatusNotFound
	case "not-a-repository", "invalid-argument", "no-git-name-email-configured", "no-pending-credentials":
		return http.StatusBadRequest
	case "stash-pop-conflict", "credentials-pending":
		return http.StatusConflict
	case "credentials-disconnected":
		return http.StatusGone
	case "timeout":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
