package domain

// EventKind is the closed set of events exchanged with clients.
type EventKind uint8

const (
	KindUnknown EventKind = iota

	// membership
	KindJoin
	KindLeave
	KindJoined
	KindDisconnected
	KindEvicted
	KindRoomCreated
	KindFetchUsers
	KindUsersFetched

	// editor
	KindCodeChange
	KindSyncCode
	KindTypingStart
	KindTypingEnd
	KindFileCreated
	KindFileDeleted
	KindFileRenamed

	// whiteboard
	KindDrawingUpdate
	KindShapeAdd
	KindTextAdd
	KindImageAdd
	KindElementMove
	KindCanvasReset
	KindSaveCanvas
	KindCanvasSaved

	// compiler panel
	KindCompilerStatus
	KindCompilerInput
	KindCompilerOutput
	KindCompilerTestCases

	KindChat

	// analytics
	KindUserAction
	KindActionLog
	KindMetricsUpdate
	KindStartTracking
	KindTrackingStarted
	KindStopTracking
	KindTrackingStopped
	KindFetchAnalytics
	KindAnalyticsSnapshot
	KindResetAnalytics

	// control
	KindPing
	KindPong
	KindError

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:           "unknown",
	KindJoin:              "join",
	KindLeave:             "leave",
	KindJoined:            "joined",
	KindDisconnected:      "disconnected",
	KindEvicted:           "evicted",
	KindRoomCreated:       "room-created",
	KindFetchUsers:        "fetch-users",
	KindUsersFetched:      "users-fetched",
	KindCodeChange:        "code-change",
	KindSyncCode:          "sync-code",
	KindTypingStart:       "typing-start",
	KindTypingEnd:         "typing-end",
	KindFileCreated:       "file-created",
	KindFileDeleted:       "file-deleted",
	KindFileRenamed:       "file-renamed",
	KindDrawingUpdate:     "drawing-update",
	KindShapeAdd:          "shape-add",
	KindTextAdd:           "text-add",
	KindImageAdd:          "image-add",
	KindElementMove:       "element-move",
	KindCanvasReset:       "canvas-reset",
	KindSaveCanvas:        "save-canvas",
	KindCanvasSaved:       "canvas-saved",
	KindCompilerStatus:    "compiler-status",
	KindCompilerInput:     "compiler-input",
	KindCompilerOutput:    "compiler-output",
	KindCompilerTestCases: "compiler-test-cases",
	KindChat:              "chat",
	KindUserAction:        "user-action",
	KindActionLog:         "action-log",
	KindMetricsUpdate:     "metrics-update",
	KindStartTracking:     "start-tracking",
	KindTrackingStarted:   "tracking-started",
	KindStopTracking:      "stop-tracking",
	KindTrackingStopped:   "tracking-stopped",
	KindFetchAnalytics:    "fetch-analytics",
	KindAnalyticsSnapshot: "analytics-snapshot",
	KindResetAnalytics:    "reset-analytics",
	KindPing:              "ping",
	KindPong:              "pong",
	KindError:             "error",
}

var kindsByName = func() map[string]EventKind {
	m := make(map[string]EventKind, kindCount)
	for k := KindUnknown + 1; k < kindCount; k++ {
		m[kindNames[k]] = k
	}
	return m
}()

// inbound lists the kinds a client may send.
var inbound = map[EventKind]bool{
	KindJoin:              true,
	KindLeave:             true,
	KindFetchUsers:        true,
	KindCodeChange:        true,
	KindSyncCode:          true,
	KindTypingStart:       true,
	KindTypingEnd:         true,
	KindFileCreated:       true,
	KindFileDeleted:       true,
	KindFileRenamed:       true,
	KindDrawingUpdate:     true,
	KindShapeAdd:          true,
	KindTextAdd:           true,
	KindImageAdd:          true,
	KindElementMove:       true,
	KindCanvasReset:       true,
	KindSaveCanvas:        true,
	KindCompilerStatus:    true,
	KindCompilerInput:     true,
	KindCompilerOutput:    true,
	KindCompilerTestCases: true,
	KindChat:              true,
	KindUserAction:        true,
	KindStartTracking:     true,
	KindStopTracking:      true,
	KindFetchAnalytics:    true,
	KindResetAnalytics:    true,
	KindPing:              true,
}

// String returns the wire name.
func (k EventKind) String() string {
	if k >= kindCount {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Inbound reports whether clients are allowed to send this kind.
func (k EventKind) Inbound() bool {
	return inbound[k]
}

// ParseEventKind maps a wire name to its kind.
func ParseEventKind(name string) (EventKind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// AllKinds returns every known kind except KindUnknown.
func AllKinds() []EventKind {
	kinds := make([]EventKind, 0, kindCount-1)
	for k := KindUnknown + 1; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
