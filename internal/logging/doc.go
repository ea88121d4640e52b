// Package logging builds slog loggers with the console and JSON handlers
// shared by the orchestrator and the worker.
package logging
