package cryptox

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	mac := Sign([]byte("Jefe"), []byte("what do ya want for nothing?"))
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", hex.EncodeToString(mac))
}

func TestVerify(t *testing.T) {
	key := []byte("secret")
	msg := []byte("payload")
	sig := Sign(key, msg)

	assert.True(t, Verify(key, msg, sig))
	assert.False(t, Verify([]byte("other"), msg, sig))
	assert.False(t, Verify(key, []byte("payloaD"), sig))
	assert.False(t, Verify(key, msg, sig[:len(sig)-1]))
	assert.False(t, Verify(key, msg, nil))
}

func TestEqualStrings(t *testing.T) {
	assert.True(t, EqualStrings("abc", "abc"))
	assert.False(t, EqualStrings("abc", "abd"))
	assert.False(t, EqualStrings("abc", "ab"))
}

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey([]byte("upload-secret"), "grants")
	require.NoError(t, err)
	b, err := DeriveKey([]byte("upload-secret"), "grants")
	require.NoError(t, err)
	c, err := DeriveKey([]byte("upload-secret"), "other")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = DeriveKey(nil, "grants")
	assert.Error(t, err)
}
