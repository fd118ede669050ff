// Package logging is the structured logger shared by the server and the
// uploader client. Call sites depend on Logger only; the slog-backed
// implementation lives in slog.go.
package logging

import "context"

// Logger writes leveled records with alternating key/value attributes:
//
//	logger.Debug(ctx, "chunk accepted", "upload_id", id, "range", r)
//
// The context is handed through to the handler so request-scoped values
// survive.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With binds args to every record of the returned logger.
	With(args ...any) Logger
}
