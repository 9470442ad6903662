package config

const (
	LogLevelDebug   string = "debug"
	LogLevelInfo    string = "info"
	LogLevelWarning string = "warn"
	LogLevelError   string = "error"

	LogFilePath string = "stripefec/log/log_output.txt"

	Version string = "0.1.0"

	// DefaultBlockSize is the checksum-map block granularity (spec §4.7)
	// when a stripe config does not override it.
	DefaultBlockSize = 4096
)
