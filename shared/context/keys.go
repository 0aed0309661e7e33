package context

type key string

const (
	RequestIDKey key = "requestID"
	DeviceIDKey  key = "deviceID"
	SourceKey    key = "source"
)
