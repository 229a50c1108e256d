package apperror

// Code identifies a failure class. Callers branch on codes, never on messages.
type Code string

// Caller and configuration errors
const (
	CodeRequiredField      Code = "REQUIRED_FIELD"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// On-chain data error codes
const (
	// Chain node
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeChainReadFailure         Code = "CHAIN_READ_FAILURE"

	// Subgraph
	CodeTransportFailure Code = "TRANSPORT_FAILURE"
	CodeDecodeFailure    Code = "DECODE_FAILURE"
	CodeNoDataAvailable  Code = "NO_DATA_AVAILABLE"

	// Streams
	CodeStreamPollFailure Code = "STREAM_POLL_FAILURE"

	// Cache backend
	CodeCacheError Code = "CACHE_ERROR"
)
