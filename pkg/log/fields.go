package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Collaboration
	FieldHandle      = "handle"
	FieldPriorHandle = "prior_handle"
	FieldRoomID      = "room_id"
	FieldUsername    = "username"
	FieldEventKind   = "event_kind"
	FieldActionType  = "action_type"
	FieldRecipients  = "recipients"

	// Service
	FieldService = "service"

	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
