package mega

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"
)

// attrMagic is the fixed ASCII tag MEGA prepends to every attribute
// blob before encryption. Its absence after decryption means the wrong
// key was used, not that the transfer went bad.
const attrMagic = "MEGA"

var zeroIV = make([]byte, aes.BlockSize)

// FileAttr is the decrypted attribute object. MEGA stores the display
// name under "n"; a node with no name is valid, just unnamed.
type FileAttr struct {
	Name string `json:"n"`
}

// DecryptAttr decrypts a node's attribute blob with the attribute key.
// The blob is AES-CBC under a zero IV with NUL padding; the plaintext
// is the magic tag followed by a JSON object.
func DecryptAttr(key []byte, blob []byte) (FileAttr, error) {
	var attr FileAttr
	if len(blob) == 0 || len(blob)%aes.BlockSize != 0 {
		return attr, fmt.Errorf("%w: blob length %d not block aligned", ErrAttributeParse, len(blob))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return attr, fmt.Errorf("error creating attribute cipher: %v", err)
	}
	plain := make([]byte, len(blob))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(plain, blob)
	plain = bytes.TrimRight(plain, "\x00")
	if !bytes.HasPrefix(plain, []byte(attrMagic)) {
		return attr, ErrAttributeMagic
	}
	if err := json.Unmarshal(plain[len(attrMagic):], &attr); err != nil {
		return attr, fmt.Errorf("%w: %v", ErrAttributeParse, err)
	}
	return attr, nil
}

// EncryptAttr is the inverse of DecryptAttr. The downloader never
// uploads, but encryption keeps the codec round-trippable under test.
func EncryptAttr(key []byte, attr FileAttr) ([]byte, error) {
	data, err := json.Marshal(attr)
	if err != nil {
		return nil, fmt.Errorf("error encoding attributes: %v", err)
	}
	plain := append([]byte(attrMagic), data...)
	if pad := len(plain) % aes.BlockSize; pad != 0 {
		plain = append(plain, make([]byte, aes.BlockSize-pad)...)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("error creating attribute cipher: %v", err)
	}
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(out, plain)
	return out, nil
}
