package mega

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// APIRoot is the canonical MEGA API host. Links may carry mega.nz or
// mega.co.nz, but the API endpoint is fixed infrastructure and never
// derived from the link itself.
const APIRoot = "https://g.api.mega.co.nz"

// ShareLink is a parsed public file link: the node handle and the raw
// symmetric key that MEGA encodes in the URL fragment. The key never
// leaves the client.
type ShareLink struct {
	Handle  string
	RawKey  []byte
	APIRoot string
}

// ParseLink parses a MEGA public file link. Two forms exist:
//
//	https://mega.nz/file/<handle>#<key>   (current)
//	https://mega.nz/#!<handle>!<key>      (legacy)
//
// The key is URL-safe base64 without padding and must decode to exactly
// 16 or 32 bytes. All failures here are deterministic and occur before
// any network traffic.
func ParseLink(raw string) (*ShareLink, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "mega.nz" && host != "mega.co.nz" {
		return nil, fmt.Errorf("%w: host %q", ErrMalformedLink, u.Hostname())
	}

	var handle, keyToken string
	path := strings.Trim(u.Path, "/")
	fragment := u.Fragment
	switch {
	case strings.HasPrefix(path, "file/"):
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[1] == "" {
			return nil, fmt.Errorf("%w: no file handle in path", ErrMalformedLink)
		}
		handle = parts[1]
		keyToken = fragment
	case strings.HasPrefix(fragment, "!"):
		parts := strings.SplitN(strings.TrimPrefix(fragment, "!"), "!", 2)
		if parts[0] == "" {
			return nil, fmt.Errorf("%w: no file handle in fragment", ErrMalformedLink)
		}
		handle = parts[0]
		if len(parts) == 2 {
			keyToken = parts[1]
		}
	default:
		return nil, ErrMalformedLink
	}

	if keyToken == "" {
		return nil, ErrMissingKey
	}
	key, err := base64.RawURLEncoding.DecodeString(keyToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}
	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(key))
	}
	return &ShareLink{Handle: handle, RawKey: key, APIRoot: APIRoot}, nil
}
