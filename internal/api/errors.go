package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campusattend/internal/attendance"
	"campusattend/internal/otp"
	"campusattend/internal/schedule"
	"campusattend/internal/store"
	"campusattend/internal/user"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorTable = []errorMapping{
	{attendance.ErrDuplicateForPeriod, http.StatusConflict, "duplicate_for_period"},
	{schedule.ErrUnknownPeriod, http.StatusBadRequest, "unknown_period"},
	{schedule.ErrLunchBreak, http.StatusBadRequest, "lunch_break"},
	{schedule.ErrNotYetOpen, http.StatusBadRequest, "not_yet_open"},
	{schedule.ErrAlreadyClosed, http.StatusBadRequest, "already_closed"},
	{otp.ErrInvalidOrExpired, http.StatusUnauthorized, "invalid_or_expired_otp"},
	{user.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{user.ErrInvalidRegistration, http.StatusBadRequest, "invalid_registration"},
	{user.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{user.ErrNotFound, http.StatusNotFound, "not_found"},
}

// classify returns the HTTP status and machine code for err.
func classify(err error) (int, string) {
	if store.IsStorage(err) {
		return http.StatusServiceUnavailable, "storage_unavailable"
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// fail writes err as JSON. Server-side failures are recorded on the context
// for the access log and never echo driver messages to the client.
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": "bad_request"})
}
