package lorachat

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPSKSealOpen(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	psk, err := NewPSK(key)
	require.NoError(t, err)

	plaintext := []byte("meet at the ridge at noon")
	sealed, err := psk.Seal(plaintext)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, plaintext))

	opened, err := psk.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)

	again, err := psk.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ between seals")
}

func TestPSKOpenRejectsTampering(t *testing.T) {
	psk, err := NewPSK(DeriveKey("shared secret"))
	require.NoError(t, err)

	sealed, err := psk.Seal([]byte("hello"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = psk.Open(sealed)
	assert.Error(t, err)

	_, err = psk.Open([]byte("short"))
	assert.Error(t, err)
}

func TestPSKWrongKey(t *testing.T) {
	a, err := NewPSK(DeriveKey("alpha"))
	require.NoError(t, err)
	b, err := NewPSK(DeriveKey("bravo"))
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("hello"))
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.Error(t, err)
}

func TestNewPSKKeySize(t *testing.T) {
	_, err := NewPSK(make([]byte, 16))
	assert.Error(t, err)
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, DeriveKey("field team"), DeriveKey("field team"))
	assert.NotEqual(t, DeriveKey("field team"), DeriveKey("field team 2"))
	assert.Len(t, DeriveKey("x"), KeySize)
}

func TestDecodeKeyBase64(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(key)

	decoded, err := DecodeKeyBase64(encoded + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, decoded)

	_, err = DecodeKeyBase64("not base64!")
	assert.Error(t, err)

	_, err = DecodeKeyBase64(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestReadKeyFile(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "psk")
	require.NoError(t, os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)+"\n"), 0o600))

	loaded, err := ReadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	_, err = ReadKeyFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
