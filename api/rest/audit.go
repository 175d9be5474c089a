package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/textrpg/audit"
	mw "github.com/kasuganosora/textrpg/middleware"
)

// auditor records one command per request. A nil service records nothing.
type auditor struct {
	svc *audit.Service
}

func (a auditor) record(c *gin.Context, start time.Time, action, target string, req, resp interface{}, err error) {
	a.recordFor(c, mw.GetPlayerID(c), start, action, target, req, resp, err)
}

// recordFor attributes the entry to playerID, for admin commands acting on
// another player.
func (a auditor) recordFor(c *gin.Context, playerID int64, start time.Time, action, target string, req, resp interface{}, err error) {
	if a.svc == nil {
		return
	}
	a.svc.Log(audit.AuditEntry{
		TraceID:  mw.GetTraceID(c),
		PlayerID: playerID,
		Action:   action,
		Target:   target,
		Request:  req,
		Response: resp,
		Err:      err,
		Duration: time.Since(start),
	})
}
