package storage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophdrive/internal/common"
)

// ReadPayload reads a whole-body upload of declared bytes. With sniff
// enabled, an all-ASCII body that decodes as base64 (optionally wrapped in
// a data: URL) is replaced by the decoded bytes. Otherwise the body must be
// exactly declared bytes long.
func ReadPayload(r io.Reader, declared int64, sniff bool) ([]byte, error) {
	if declared <= 0 {
		return nil, fmt.Errorf("%w: fileSize is invalid", common.ErrValidation)
	}

	data, err := io.ReadAll(io.LimitReader(r, declared+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > declared {
		return nil, fmt.Errorf("%w, expected %d, got more", common.ErrSizeMismatch, declared)
	}

	if sniff {
		if decoded, ok := SniffBase64(data); ok {
			return decoded, nil
		}
	}

	if int64(len(data)) != declared {
		return nil, fmt.Errorf("%w, expected %d, got %d", common.ErrSizeMismatch, declared, len(data))
	}
	return data, nil
}

// SniffBase64 returns the decoded payload when data is ASCII text holding
// base64, with or without a "data:<type>;base64," prefix.
func SniffBase64(data []byte) ([]byte, bool) {
	if len(data) == 0 || !isASCII(data) || !utf8.Valid(data) {
		return nil, false
	}

	text := bytes.TrimSpace(data)
	if bytes.HasPrefix(text, []byte("data:")) {
		i := bytes.Index(text, []byte(";base64,"))
		if i < 0 {
			return nil, false
		}
		text = text[i+len(";base64,"):]
	}
	text = stripSpace(text)
	if len(text) == 0 {
		return nil, false
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		out := make([]byte, enc.DecodedLen(len(text)))
		n, err := enc.Decode(out, text)
		if err == nil && n > 0 {
			return out[:n], true
		}
	}
	return nil, false
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

func stripSpace(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case ' ', '\n', '\r', '\t':
		default:
			out = append(out, c)
		}
	}
	return out
}
