// Package logging owns slog construction and the structured field vocabulary
// shared by every component. Console output is rendered with tint, JSON output
// with the standard library handler; components receive a *slog.Logger tagged
// with their component name and never configure handlers themselves.
package logging
