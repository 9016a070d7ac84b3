package audit

import (
	"context"

	"github.com/weiawesome/wes-io-collab/pkg/log"
)

// Audit actions for session transitions.
const (
	ActionJoin           = "collab.join"
	ActionLeave          = "collab.leave"
	ActionEvict          = "collab.evict"
	ActionDisconnect     = "collab.disconnect"
	ActionResetAnalytics = "collab.reset_analytics"
	ActionCreateRoom     = "collab.create_room"
)

const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Entry is one audit line.
type Entry struct {
	Action   string
	RoomID   string
	Username string
	Handle   string
	Detail   string
}

// Log emits the entry through the context logger, tagged log_type=audit.
func Log(ctx context.Context, e Entry, msg string) {
	l := log.Ctx(ctx)
	evt := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, e.Action).
		Str(log.FieldRoomID, e.RoomID)
	if e.Username != "" {
		evt = evt.Str(log.FieldUsername, e.Username)
	}
	if e.Handle != "" {
		evt = evt.Str(log.FieldHandle, e.Handle)
	}
	if e.Detail != "" {
		evt = evt.Str(FieldDetail, e.Detail)
	}
	evt.Msg(msg)
}
