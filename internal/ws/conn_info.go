package ws

import (
	"net/http"
	"time"

	"discord-chat/internal/observability"
)

type ConnInfo struct {
	ConnID      string
	ProfileID   string
	MemberID    int64
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, profileID string, memberID int64, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		ProfileID:   profileID,
		MemberID:    memberID,
		DeviceID:    observability.DeviceIDFromRequest(r),
		IP:          observability.IPFromRequest(r),
		RequestID:   observability.RequestIDFromRequest(r),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}
