// Package logger builds configured log/slog loggers for SDK consumers.
//
// Output format and level can be set programmatically through options or
// loaded from the environment via Config and pkg/config.
package logger
