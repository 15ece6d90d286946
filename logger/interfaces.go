package logger

// Logger is the structured logging interface used across the project.
// It hides the logrus backend so packages never depend on it directly.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	Fatal(msg string, err error, fields ...Field)

	// With returns a child logger carrying preset fields.
	With(fields ...Field) Logger

	// Close releases any file handle owned by the logger.
	Close() error
}

// Field is a single structured log field.
type Field struct {
	Key   string
	Value interface{}
}
