// Package cli provides the gophdrive uploader command line.
//
// Commands:
//
//	upload <file>             send a file through a resumable session
//	cache put <key> <file>    store a cache entry
//	cache ls [prefix]         list cache keys
//	cache rm <key>            delete a cache entry
//	grant <subject>           issue a delegated token (master secret only)
//
// Settings come from internal/client/config and are overridden by the
// persistent flags. When no token is configured and stdin is a terminal the
// token is prompted for without echo.
package cli
