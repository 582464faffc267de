package mega

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeysFull(t *testing.T) {
	// Sequential key bytes 0x00..0x1F make every derived field easy to
	// check by hand: for each i in the first half, i^(i+16) == 0x10.
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	km, err := DeriveKeys(raw)
	require.NoError(t, err)
	assert.True(t, km.FullKey())

	assert.Equal(t, bytes.Repeat([]byte{0x10}, 16), km.AttrKey[:])
	assert.Equal(t, raw[0:16], km.ContentKey[:])
	assert.Equal(t, raw[16:24], km.Nonce[:])
	assert.Equal(t, raw[24:32], km.ExpectedMAC[:])
}

func TestDeriveKeysGolden32(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 32)
	km, err := DeriveKeys(raw)
	require.NoError(t, err)

	// Identical halves fold to a zero attribute key; the content key,
	// nonce and MAC are the raw bytes themselves.
	assert.Equal(t, make([]byte, 16), km.AttrKey[:])
	assert.Equal(t, bytes.Repeat([]byte{0x42}, 16), km.ContentKey[:])
	assert.Equal(t, bytes.Repeat([]byte{0x42}, 8), km.Nonce[:])
	assert.Equal(t, bytes.Repeat([]byte{0x42}, 8), km.ExpectedMAC[:])
}

func TestDeriveKeysGolden16(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 16)
	km, err := DeriveKeys(raw)
	require.NoError(t, err)
	assert.False(t, km.FullKey())

	// All four words are equal, so every rotate-XOR term cancels.
	assert.Equal(t, make([]byte, 16), km.AttrKey[:])
}

func TestDeriveKeysLegacyRotateFold(t *testing.T) {
	raw := []byte{
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x04,
		0x00, 0x00, 0x00, 0x08,
	}
	km, err := DeriveKeys(raw)
	require.NoError(t, err)

	// (k0^k1, k1^k2, k2^k3, k3^k0) with k = 1,2,4,8.
	want := []byte{
		0x00, 0x00, 0x00, 0x03,
		0x00, 0x00, 0x00, 0x06,
		0x00, 0x00, 0x00, 0x0C,
		0x00, 0x00, 0x00, 0x09,
	}
	assert.Equal(t, want, km.AttrKey[:])
}

func TestDeriveKeysDeterministic(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	a, err := DeriveKeys(raw)
	require.NoError(t, err)
	b, err := DeriveKeys(raw)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveKeysBadLength(t *testing.T) {
	for _, n := range []int{0, 8, 15, 17, 24, 33} {
		_, err := DeriveKeys(make([]byte, n))
		assert.ErrorIs(t, err, ErrInvalidKeyLength, "length %d", n)
	}
}
