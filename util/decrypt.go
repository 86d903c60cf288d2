package util

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Decrypter decrypts AES-128-CBC fragments.
// it is safe for concurrent use: every call builds its own cipher,
// Destroy waits for in-flight calls before releasing the decrypter.
type Decrypter struct {
	mu        sync.RWMutex
	destroyed bool
}

func NewDecrypter() *Decrypter {
	return &Decrypter{}
}

// Decrypt returns the plaintext of data, inputs are never modified.
func (d *Decrypter) Decrypt(
	ctx context.Context,
	data []byte,
	iv []byte,
	key []byte,
) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.destroyed {
		return nil, ErrDecrypterDestroyed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DecryptSegmentBytes(data, key, iv)
}

func (d *Decrypter) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return ErrDecrypterDestroyed
	}
	d.destroyed = true
	zap.S().Debug("decrypter released")
	return nil
}

// decrypts a byte slice representing a single segment
func DecryptSegmentBytes(encryptedData []byte, key []byte, iv []byte) ([]byte, error) {
	if !IsValidAESKey(key) {
		return nil, fmt.Errorf("%w: invalid key: expected 16 bytes, got %d", ErrDecryption, len(key))
	}
	if !IsValidIV(iv) {
		return nil, fmt.Errorf("%w: invalid IV: expected 16 bytes, got %d", ErrDecryption, len(iv))
	}
	if len(encryptedData) == 0 {
		return nil, fmt.Errorf("%w: no data to decrypt", ErrDecryption)
	}
	if len(encryptedData)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: encrypted data length is not a multiple of block size", ErrDecryption)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create AES cipher: %v", ErrDecryption, err)
	}
	mode := cipher.NewCBCDecrypter(block, iv)
	decryptedData := make([]byte, len(encryptedData))
	mode.CryptBlocks(decryptedData, encryptedData)
	unpaddedData, err := removePKCS7Padding(decryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to remove padding: %v", ErrDecryption, err)
	}
	return unpaddedData, nil
}

// SegmentIV derives the IV of a segment without an explicit IV attribute.
// HLS specification: the media sequence number is used as a
// big-endian 128-bit integer, added here on top of baseIV
func SegmentIV(baseIV []byte, mediaSequence uint64) []byte {
	iv := make([]byte, aes.BlockSize)
	copy(iv, baseIV)

	carry := uint64(0)
	// start from the least significant byte and work backwards
	for i := 15; i >= 8; i-- {
		sum := uint64(iv[i]) + ((mediaSequence >> (8 * (15 - i))) & 0xFF) + carry
		iv[i] = byte(sum & 0xFF)
		carry = sum >> 8
	}
	// handle any remaining carry into the upper bytes
	for i := 7; i >= 0 && carry > 0; i-- {
		sum := uint64(iv[i]) + carry
		iv[i] = byte(sum & 0xFF)
		carry = sum >> 8
	}
	return iv
}

// removes PKCS#7 padding from decrypted data
func removePKCS7Padding(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data is empty")
	}
	paddingLength := int(data[len(data)-1])
	if paddingLength == 0 || paddingLength > aes.BlockSize {
		return nil, fmt.Errorf("invalid padding length: %d", paddingLength)
	}
	if paddingLength > len(data) {
		return nil, fmt.Errorf("padding length (%d) exceeds data length (%d)", paddingLength, len(data))
	}
	for i := len(data) - paddingLength; i < len(data); i++ {
		if data[i] != byte(paddingLength) {
			return nil, fmt.Errorf("invalid padding at position %d", i)
		}
	}
	return data[:len(data)-paddingLength], nil
}

func IsValidAESKey(key []byte) bool {
	return len(key) == 16
}

func IsValidIV(iv []byte) bool {
	return len(iv) == 16
}
