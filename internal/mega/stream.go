package mega

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// StreamDecryptor turns the ciphertext stream back into plaintext while
// folding every ciphertext byte into a chained MAC. Chunks must be fed
// strictly in order: both the CTR counter and the MAC chain depend on
// all prior bytes.
type StreamDecryptor struct {
	block      cipher.Block
	nonce      [8]byte
	expected   [8]byte
	macChain   [16]byte
	nextOffset int64
}

// NewStreamDecryptor prepares payload decryption for a download
// session. Legacy 16-byte keys carry no content key material and are
// rejected up front, before any content request goes out.
func NewStreamDecryptor(km *KeyMaterial) (*StreamDecryptor, error) {
	if !km.FullKey() {
		return nil, ErrUnsupportedKeyFormat
	}
	block, err := aes.NewCipher(km.ContentKey[:])
	if err != nil {
		return nil, fmt.Errorf("error creating content cipher: %v", err)
	}
	d := &StreamDecryptor{block: block}
	d.nonce = km.Nonce
	d.expected = km.ExpectedMAC
	return d, nil
}

// Offset returns the next ciphertext offset the decryptor expects.
// After a mid-stream failure this is the resume point: it always sits
// on a chunk boundary, where the counter and MAC state are coherent.
func (d *StreamDecryptor) Offset() int64 { return d.nextOffset }

// DecryptChunk decrypts one chunk of ciphertext starting at offset and
// advances the MAC chain. The offset must be exactly where the previous
// chunk ended.
func (d *StreamDecryptor) DecryptChunk(offset int64, ciphertext []byte) ([]byte, error) {
	if offset != d.nextOffset {
		return nil, fmt.Errorf("chunk at offset %d out of order, expected %d", offset, d.nextOffset)
	}

	// Counter for AES block i is nonce ‖ big-endian i, where i counts
	// 16-byte blocks from the start of the file. Chunk boundaries are
	// multiples of the block size, so offset/16 is exact here.
	var iv [16]byte
	copy(iv[:8], d.nonce[:])
	binary.BigEndian.PutUint64(iv[8:], uint64(offset)/aes.BlockSize)
	plain := make([]byte, len(ciphertext))
	cipher.NewCTR(d.block, iv[:]).XORKeyStream(plain, ciphertext)

	d.macUpdate(ciphertext)
	d.nextOffset = offset + int64(len(ciphertext))
	return plain, nil
}

// macUpdate CBC-encrypts the ciphertext into the running MAC chain. The
// IV is the previous chunk's final MAC block; a trailing partial block
// is zero padded.
func (d *StreamDecryptor) macUpdate(ciphertext []byte) {
	for len(ciphertext) > 0 {
		var in [16]byte
		n := copy(in[:], ciphertext)
		ciphertext = ciphertext[n:]
		for i := range d.macChain {
			d.macChain[i] ^= in[i]
		}
		d.block.Encrypt(d.macChain[:], d.macChain[:])
	}
}

// Verify compares the folded MAC against the value embedded in the raw
// key. A mismatch means every byte already emitted is untrusted.
func (d *StreamDecryptor) Verify() error {
	var folded [8]byte
	for i := range folded {
		folded[i] = d.macChain[i] ^ d.macChain[i+8]
	}
	if subtle.ConstantTimeCompare(folded[:], d.expected[:]) != 1 {
		return ErrIntegrity
	}
	return nil
}
