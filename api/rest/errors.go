package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/game/goalerr"
)

var kindStatus = map[goalerr.Kind]int{
	goalerr.NotFound:                 http.StatusNotFound,
	goalerr.InvalidState:             http.StatusConflict,
	goalerr.DuplicateActive:          http.StatusConflict,
	goalerr.PrerequisiteNotMet:       http.StatusForbidden,
	goalerr.InvalidChoice:            http.StatusUnprocessableEntity,
	goalerr.InvalidInput:             http.StatusBadRequest,
	goalerr.RewardApplicationFailure: http.StatusInternalServerError,
	goalerr.StorageFailure:           http.StatusServiceUnavailable,
}

// respondError writes err as {error, kind, details}. error is the machine
// code when the error has one, otherwise the kind.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := goalerr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := gin.H{"error": string(kind), "kind": kind}
	var ge *goalerr.Error
	if errors.As(err, &ge) {
		if ge.Code != "" {
			body["error"] = ge.Code
		}
		if len(ge.Details) > 0 {
			body["details"] = ge.Details
		}
	}
	if goalerr.Retryable(err) {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, goalerr.New(goalerr.InvalidInput, "", "%s", msg).With("reason", msg))
}
