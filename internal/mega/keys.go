package mega

import (
	"encoding/binary"
	"fmt"
)

// KeyMaterial is everything derivable from a link's raw key. All fields
// are pure functions of the raw key bytes; nothing here is secret-free,
// so none of it may appear in logs or error messages.
type KeyMaterial struct {
	// AttrKey decrypts the node's attribute blob (AES-CBC, zero IV).
	AttrKey [16]byte
	// ContentKey decrypts the file payload (AES-CTR).
	ContentKey [16]byte
	// Nonce is the high half of every CTR counter block.
	Nonce [8]byte
	// ExpectedMAC is the value the chained content MAC must equal at
	// end of stream.
	ExpectedMAC [8]byte
	// full is set for 32-byte keys, the only format that carries
	// content key material.
	full bool
}

// FullKey reports whether payload decryption is possible. 16-byte legacy
// keys only ever decrypt attributes.
func (km *KeyMaterial) FullKey() bool { return km.full }

// DeriveKeys runs the key schedule for a 16- or 32-byte raw key.
//
// A 32-byte key is eight big-endian words k0..k7: the attribute key is
// the XOR fold of the two halves (k0^k4 .. k3^k7), the content key is
// the raw first half, the CTR nonce is k4‖k5 and the expected MAC is
// k6‖k7. A 16-byte key is four words k0..k3 folded rotate-XOR style
// (k0^k1, k1^k2, k2^k3, k3^k0) into an attribute key only.
func DeriveKeys(raw []byte) (*KeyMaterial, error) {
	switch len(raw) {
	case 32:
		km := &KeyMaterial{full: true}
		for i := range km.AttrKey {
			km.AttrKey[i] = raw[i] ^ raw[i+16]
		}
		copy(km.ContentKey[:], raw[:16])
		copy(km.Nonce[:], raw[16:24])
		copy(km.ExpectedMAC[:], raw[24:32])
		return km, nil
	case 16:
		km := &KeyMaterial{}
		var k [4]uint32
		for i := range k {
			k[i] = binary.BigEndian.Uint32(raw[i*4:])
		}
		for i := range k {
			binary.BigEndian.PutUint32(km.AttrKey[i*4:], k[i]^k[(i+1)%4])
		}
		return km, nil
	default:
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(raw))
	}
}
