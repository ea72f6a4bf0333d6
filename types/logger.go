package types

// Logger defines methods for structured logging.
//
// Messages take alternating key-value pairs, so a zap.SugaredLogger or a
// thin slog wrapper satisfies it directly. Ingresses log lifecycle events at
// Info and never log per edge above Debug.
type Logger interface {
	// Debug logs a message at debug level.
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at info level.
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at warn level.
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at error level.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message at fatal level and exits the process with status 1.
	Fatal(msg string, keysAndValues ...any)
}
