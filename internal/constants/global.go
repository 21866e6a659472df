package constants

// AppName is this binary's name. No code reads it: the Prometheus
// namespace and the default PID file name spell "reqbody" literally.
const AppName = "reqbody"

const (
	// ProtocolRequestIDKey is the header clients or upstream proxies may
	// set to correlate a request across logs; a missing header gets a
	// generated ID (see metrics.MustParseRequestID).
	ProtocolRequestIDKey = "X-Request-ID"
)
