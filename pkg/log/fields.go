package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Chat domain
	FieldRoomID     = "room_id"
	FieldMessageID  = "message_id"
	FieldListenerID = "listener_id"
	FieldExchange   = "exchange"
	FieldQueue      = "queue"

	// Service
	FieldService = "service"
)
