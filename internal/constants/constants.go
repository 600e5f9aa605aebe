package constants

const (
	AppMain                = "storefront"
	AppStorefrontService   = "storefront-service"
	AppNotificationService = "notification-service"
	AppNotificationRelay   = "notification-relay"
)

const (
	HeaderContentType    = "Content-Type"
	HeaderValueJson      = "application/json"
	HeaderRequestID      = "X-Request-ID"
	HeaderSessionID      = "X-Session-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)
