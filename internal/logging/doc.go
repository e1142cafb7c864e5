// Package logging builds slog loggers for the daemon and CLI.
//
// It provides a console handler for interactive use, a JSON handler for log
// files and machine consumption, component loggers carrying a standard
// component attribute, and typed attribute helpers so call sites stay terse.
package logging
