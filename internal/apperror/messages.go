package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:      "Required field is missing",
	CodeInvalidInput:       "Invalid input provided",
	CodeConfigurationError: "Configuration error",
	CodeRateLimitExceeded:  "Rate limit exceeded",
	CodeUnknownError:       "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeChainReadFailure:         "Failed to read on-chain balance",

	CodeTransportFailure: "Subgraph request failed",
	CodeDecodeFailure:    "Subgraph response could not be decoded",
	CodeNoDataAvailable:  "No data available",

	CodeStreamPollFailure: "Polling stream failed",

	CodeCacheError: "Cache operation failed",
}
