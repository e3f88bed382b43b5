package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	secret := []byte("device-secret")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(secret, salt)
	key2 := DeriveKey(secret, salt)

	require.Len(t, key1, KeySize)
	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	secret := []byte("device-secret")

	if bytes.Equal(DeriveKey(secret, []byte("salt-1")), DeriveKey(secret, []byte("salt-2"))) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := DeriveKey([]byte("s"), []byte("salt"))

	sealed, err := Seal(key, []byte("refresh-token"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "refresh-token")

	plain, err := Open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", string(plain))
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key := DeriveKey([]byte("s"), []byte("salt"))

	a, err := Seal(key, []byte("same"))
	require.NoError(t, err)
	b, err := Seal(key, []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Failures(t *testing.T) {
	key := DeriveKey([]byte("s"), []byte("salt"))
	other := DeriveKey([]byte("other"), []byte("salt"))

	sealed, err := Seal(key, []byte("payload"))
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := Open(other, sealed)
		require.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xFF
		_, err := Open(key, bad)
		require.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := Open(key, []byte{1, 2, 3})
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("invalid key size", func(t *testing.T) {
		_, err := Seal([]byte("short"), []byte("x"))
		require.Error(t, err)
	})
}

func TestSealJSON_OpenJSON(t *testing.T) {
	type pair struct {
		A string `json:"a"`
		R string `json:"r"`
	}
	key := DeriveKey([]byte("s"), []byte("salt"))

	sealed, err := SealJSON(key, pair{A: "access", R: "refresh"})
	require.NoError(t, err)

	var got pair
	require.NoError(t, OpenJSON(key, sealed, &got))
	assert.Equal(t, pair{A: "access", R: "refresh"}, got)
}
