package mega

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAttrKey = bytes.Repeat([]byte{0x5A}, 16)

func TestAttrRoundTrip(t *testing.T) {
	blob, err := EncryptAttr(testAttrKey, FileAttr{Name: "Example.cbz"})
	require.NoError(t, err)
	require.Zero(t, len(blob)%aes.BlockSize)

	attr, err := DecryptAttr(testAttrKey, blob)
	require.NoError(t, err)
	assert.Equal(t, "Example.cbz", attr.Name)
}

func TestAttrWrongKey(t *testing.T) {
	blob, err := EncryptAttr(testAttrKey, FileAttr{Name: "Example.cbz"})
	require.NoError(t, err)

	wrongKey := bytes.Repeat([]byte{0xA5}, 16)
	_, err = DecryptAttr(wrongKey, blob)
	assert.ErrorIs(t, err, ErrAttributeMagic)
}

func TestAttrCorruptionNeverSilent(t *testing.T) {
	blob, err := EncryptAttr(testAttrKey, FileAttr{Name: "Example.cbz"})
	require.NoError(t, err)

	// Flipping any single ciphertext byte must surface as a magic
	// mismatch or a parse failure, never as a wrong name.
	for i := range blob {
		corrupted := bytes.Clone(blob)
		corrupted[i] ^= 0x01
		attr, err := DecryptAttr(testAttrKey, corrupted)
		if err == nil {
			assert.Equal(t, "Example.cbz", attr.Name, "byte %d", i)
			continue
		}
		ok := errors.Is(err, ErrAttributeMagic) || errors.Is(err, ErrAttributeParse)
		assert.True(t, ok, "byte %d: unexpected error %v", i, err)
	}
}

func TestAttrMissingNameDefaultsEmpty(t *testing.T) {
	// A node without "n" is valid, just unnamed.
	plain := []byte(attrMagic + `{"c":"checksum"}`)
	if pad := len(plain) % aes.BlockSize; pad != 0 {
		plain = append(plain, make([]byte, aes.BlockSize-pad)...)
	}
	block, err := aes.NewCipher(testAttrKey)
	require.NoError(t, err)
	blob := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(blob, plain)

	attr, err := DecryptAttr(testAttrKey, blob)
	require.NoError(t, err)
	assert.Equal(t, "", attr.Name)
}

func TestAttrBadBlob(t *testing.T) {
	_, err := DecryptAttr(testAttrKey, nil)
	assert.ErrorIs(t, err, ErrAttributeParse)

	_, err = DecryptAttr(testAttrKey, make([]byte, 17))
	assert.ErrorIs(t, err, ErrAttributeParse)
}
