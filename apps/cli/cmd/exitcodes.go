package cmd

// Exit codes of the srt CLI
const (
	// ExitSuccess indicates every planned test ran and passed
	ExitSuccess = 0

	// ExitTestFailure indicates a failed, skipped-by-failure or blocked test
	ExitTestFailure = 1

	// ExitParseError indicates a test document that could not be loaded
	ExitParseError = 2

	// ExitConfigError indicates a configuration error or a circular dependency
	ExitConfigError = 3

	// ExitNetworkError indicates the target service could not be reached
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
