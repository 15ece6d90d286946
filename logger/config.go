package logger

// Config holds configuration for creating a logger instance
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string

	// Format is the output format (text, json)
	Format string

	// Output is where logs are written: "stdout", "stderr", or a file path
	Output string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		Output: "stdout",
	}
}
