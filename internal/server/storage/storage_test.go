package storage

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestClampChunkSize(t *testing.T) {
	tests := []struct {
		name       string
		multiplier *int
		min        int
		want       int64
	}{
		{"absent uses default", nil, 1, 10 * ChunkBase},
		{"zero clamps to one", intp(0), 1, ChunkBase},
		{"negative clamps to one", intp(-5), 1, ChunkBase},
		{"in range", intp(25), 1, 25 * ChunkBase},
		{"ceiling", intp(1000), 1, MaxChunkMultiplier * ChunkBase},
		{"backend minimum", intp(2), 16, 16 * ChunkBase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampChunkSize(tt.multiplier, tt.min)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, got%ChunkBase)
		})
	}
	assert.Equal(t, 320, MaxChunkMultiplier)
}

func TestEncodePath(t *testing.T) {
	assert.Equal(t, "uploads/media/my%20file%231.txt", EncodePath("/uploads/", "media//my file#1.txt"))
	assert.Equal(t, "cache/a%3Ab", EncodePath("cache", "a:b"))
	assert.Equal(t, "uploads/%C3%A9t%C3%A9.png", EncodePath("uploads", "été.png"))
	assert.Equal(t, "a/b/c", JoinPath("a/", "/b/c"))
	assert.Equal(t, "", EncodePath("", ""))
}

func TestReadPayload_BinaryExactSize(t *testing.T) {
	data := make([]byte, 1024)
	_, _ = rand.Read(data)
	data[0] = 0xFF

	got, err := ReadPayload(bytes.NewReader(data), int64(len(data)), true)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadPayload_SizeMismatch(t *testing.T) {
	data := []byte{0xFF, 0x00, 0x01}

	_, err := ReadPayload(bytes.NewReader(data), 4, true)
	require.True(t, errors.Is(err, common.ErrSizeMismatch))
	assert.EqualError(t, err, "size mismatch, expected 4, got 3")

	_, err = ReadPayload(bytes.NewReader(data), 2, true)
	require.True(t, errors.Is(err, common.ErrSizeMismatch))

	_, err = ReadPayload(bytes.NewReader(data), 0, true)
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestReadPayload_SniffsBase64(t *testing.T) {
	binary := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x10}
	wrapped := base64.StdEncoding.EncodeToString(binary)

	got, err := ReadPayload(strings.NewReader(wrapped), int64(len(wrapped)), true)
	require.NoError(t, err)
	assert.Equal(t, binary, got, "size follows the decoded length")

	dataURL := "data:image/png;base64," + wrapped
	got, err = ReadPayload(strings.NewReader(dataURL), int64(len(dataURL)), true)
	require.NoError(t, err)
	assert.Equal(t, binary, got)
}

func TestReadPayload_SniffDisabledKeepsText(t *testing.T) {
	wrapped := base64.StdEncoding.EncodeToString([]byte("hello world"))

	got, err := ReadPayload(strings.NewReader(wrapped), int64(len(wrapped)), false)
	require.NoError(t, err)
	assert.Equal(t, wrapped, string(got))
}

func TestSniffBase64_Rejects(t *testing.T) {
	for _, in := range []string{"", "not base64 at all!", "data:text/plain,hello", "ünïcode"} {
		_, ok := SniffBase64([]byte(in))
		assert.False(t, ok, in)
	}
}
