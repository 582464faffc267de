package mega

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkNewForm(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 3)
	}
	encoded := base64.RawURLEncoding.EncodeToString(key)

	link, err := ParseLink("https://mega.nz/file/AbCd1234#" + encoded)
	require.NoError(t, err)
	assert.Equal(t, "AbCd1234", link.Handle)
	assert.Equal(t, key, link.RawKey)
	assert.Equal(t, APIRoot, link.APIRoot)
}

func TestParseLinkLegacyForm(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(0xF0 - i)
	}
	encoded := base64.RawURLEncoding.EncodeToString(key)

	link, err := ParseLink("https://mega.co.nz/#!xYz98765!" + encoded)
	require.NoError(t, err)
	assert.Equal(t, "xYz98765", link.Handle)
	assert.Equal(t, key, link.RawKey)
	assert.Equal(t, APIRoot, link.APIRoot)
}

func TestParseLinkAPIRootIgnoresLinkHost(t *testing.T) {
	key := base64.RawURLEncoding.EncodeToString(make([]byte, 32))
	for _, raw := range []string{
		"https://mega.nz/file/h1234567#" + key,
		"https://www.mega.co.nz/file/h1234567#" + key,
	} {
		link, err := ParseLink(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "https://g.api.mega.co.nz", link.APIRoot)
	}
}

func TestParseLinkRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(255 - i)
	}
	raw := "https://mega.nz/file/Handle42#" + base64.RawURLEncoding.EncodeToString(key)
	link, err := ParseLink(raw)
	require.NoError(t, err)
	assert.Equal(t, key, link.RawKey)
}

func TestParseLinkMissingKey(t *testing.T) {
	_, err := ParseLink("https://mega.nz/file/AbCd1234")
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = ParseLink("https://mega.nz/file/AbCd1234#")
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = ParseLink("https://mega.nz/#!AbCd1234")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestParseLinkInvalidKeyEncoding(t *testing.T) {
	_, err := ParseLink("https://mega.nz/file/AbCd1234#not*valid*base64!")
	assert.ErrorIs(t, err, ErrInvalidKeyEncoding)

	// Padded base64 is not accepted in links.
	_, err = ParseLink("https://mega.nz/file/AbCd1234#QUJDRA==")
	assert.ErrorIs(t, err, ErrInvalidKeyEncoding)
}

func TestParseLinkInvalidKeyLength(t *testing.T) {
	short := base64.RawURLEncoding.EncodeToString(make([]byte, 12))
	_, err := ParseLink("https://mega.nz/file/AbCd1234#" + short)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestParseLinkMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"not a url",
		"https://example.com/file/AbCd1234#QUJDRA",
		"https://mega.nz/folder/AbCd1234#QUJDRA",
		"https://mega.nz/",
	} {
		_, err := ParseLink(raw)
		assert.ErrorIs(t, err, ErrMalformedLink, raw)
	}
}
