package log

const (
	KeyAppName            = "app"
	KeyAttempts           = "attempts"
	KeyBody               = "body"
	KeyCacheKey           = "cacheKey"
	KeyCart               = "cart"
	KeyCartEntries        = "cartEntries"
	KeyConfig             = "config"
	KeyEditSession        = "editSession"
	KeyHeader             = "header"
	KeyIdempotencyKey     = "idempotencyKey"
	KeyLineID             = "lineId"
	KeyNotification       = "notification"
	KeyOrder              = "order"
	KeyOrderID            = "orderId"
	KeyOrders             = "orders"
	KeyOrdersCount        = "ordersCount"
	KeyOutboxMessageID    = "outboxMessageId"
	KeyProcess            = "process"
	KeyProductID          = "productId"
	KeyQuery              = "query"
	KeyRefresh            = "refresh"
	KeyRequest            = "request"
	KeyRequestHost        = "host"
	KeyRequestID          = "requestId"
	KeyRequestIp          = "requesterIP"
	KeyRequestMethod      = "requestMethod"
	KeyRequestURI         = "requestURI"
	KeyRequestURL         = "requestURL"
	KeyResponseStatusCode = "responseStatusCode"
	KeySessionID          = "sessionId"
	KeySpanID             = "spanId"
	KeyStatus             = "status"
	KeyTag                = "tag"
	KeyTotal              = "total"
	KeyTraceID            = "traceId"
	KeyURL                = "url"
)
