// Package uploadtoken encodes upload session descriptors into signed,
// expiring tokens that the client carries between chunk requests, so the
// server keeps no per-session state.
//
// Wire form: base64url(JSON payload) "." base64url(HMAC-SHA256(secret,
// encoded payload)), both without padding.
package uploadtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/cryptox"
)

// MaxSessionAge is the default lifetime of a session token.
const MaxSessionAge = 2 * time.Hour

// Descriptor is everything needed to continue an upload session.
type Descriptor struct {
	UploadURL  string
	FileSize   int64
	Filename   string
	MimeType   string
	FileID     string
	FolderPath string
	// Hidden marks cache uploads, recorded as hidden catalog entries.
	Hidden    bool
	ExpiresAt time.Time
}

// payload fixes the JSON field order so that equal descriptors always
// encode to the same bytes.
type payload struct {
	UploadURL  string  `json:"uploadUrl"`
	FileSize   int64   `json:"fileSize"`
	Filename   string  `json:"filename"`
	MimeType   *string `json:"mimeType"`
	FileID     string  `json:"fileId"`
	FolderPath *string `json:"folderPath"`
	Hidden     bool    `json:"hidden,omitempty"`
	Exp        int64   `json:"exp"`
}

var errEmptySecret = errors.New("upload token: empty secret")

var enc = base64.RawURLEncoding

// Create signs d with secret.
func Create(d Descriptor, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errEmptySecret
	}

	p := payload{
		UploadURL:  d.UploadURL,
		FileSize:   d.FileSize,
		Filename:   d.Filename,
		MimeType:   optional(d.MimeType),
		FileID:     d.FileID,
		FolderPath: optional(d.FolderPath),
		Hidden:     d.Hidden,
		Exp:        d.ExpiresAt.UnixMilli(),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	encoded := enc.EncodeToString(raw)
	sig := cryptox.Sign(secret, []byte(encoded))
	return encoded + "." + enc.EncodeToString(sig), nil
}

// Verify returns the descriptor carried by token and true when the
// signature matches, the token has not expired at now and the required
// fields are present. Any other input yields false; Verify never panics.
func Verify(token string, secret []byte, now time.Time) (Descriptor, bool) {
	if len(secret) == 0 {
		return Descriptor{}, false
	}

	encoded, sigPart, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sigPart == "" || strings.Contains(sigPart, ".") {
		return Descriptor{}, false
	}

	sig, err := enc.DecodeString(strings.TrimRight(sigPart, "="))
	if err != nil {
		return Descriptor{}, false
	}
	if !cryptox.Verify(secret, []byte(encoded), sig) {
		return Descriptor{}, false
	}

	raw, err := enc.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return Descriptor{}, false
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Descriptor{}, false
	}

	d := Descriptor{
		UploadURL:  p.UploadURL,
		FileSize:   p.FileSize,
		Filename:   p.Filename,
		MimeType:   deref(p.MimeType),
		FileID:     p.FileID,
		FolderPath: deref(p.FolderPath),
		Hidden:     p.Hidden,
		ExpiresAt:  time.UnixMilli(p.Exp),
	}

	if !now.Before(d.ExpiresAt) {
		return Descriptor{}, false
	}
	if d.UploadURL == "" || d.Filename == "" || d.FileID == "" || d.FileSize <= 0 {
		return Descriptor{}, false
	}
	return d, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
