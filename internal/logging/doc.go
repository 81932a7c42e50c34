// Package logging wraps log/slog with the handlers and attribute helpers
// shared by every vjcap component. Console output is a compact single-line
// format aimed at a terminal; JSON output is for log shippers.
package logging
