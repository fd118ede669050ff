// Package common contains shared constants and sentinel errors used across
// gophdrive components.
package common

const (
	// UploadIDHeaderName carries the session token on chunk requests.
	UploadIDHeaderName = "x-upload-id"

	// ContentRangeHeaderName carries "bytes <start>-<end>/<total>".
	ContentRangeHeaderName = "Content-Range"

	// AuthorizationHeaderName is the standard credential header.
	AuthorizationHeaderName = "Authorization"

	// AltAuthorizationHeaderName is accepted when a proxy strips Authorization.
	AltAuthorizationHeaderName = "x-authorization"
)
