package token

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrBadCiphertext = errors.New("ciphertext is malformed")
	ErrBadPadding    = errors.New("invalid ciphertext padding")
)

// Cipher encrypts and decrypts credential tokens with AES-256-CBC. Key and
// IV arrive hex-encoded from configuration (32 and 16 bytes decoded);
// ciphertexts are hex strings.
type Cipher struct {
	key []byte
	iv  []byte
}

func NewCipher(hexKey, hexIV string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding cipher key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher key must be 32 bytes, got %d", len(key))
	}
	iv, err := hex.DecodeString(hexIV)
	if err != nil {
		return nil, fmt.Errorf("decoding cipher iv: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("cipher iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Cipher{key: key, iv: iv}, nil
}

func (c *Cipher) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	padded := pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

func (c *Cipher) Decrypt(encrypted string) (string, error) {
	raw, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCiphertext, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: length %d not a block multiple", ErrBadCiphertext, len(raw))
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, raw)
	return unpad(out, aes.BlockSize)
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) (string, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return "", ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return "", ErrBadPadding
		}
	}
	return string(data[:len(data)-n]), nil
}
