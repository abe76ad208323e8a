package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
)

// Decrypt reverses Encrypt: key is the raw AES-256 key, enc is
// hex(nonce || ciphertext). Used to recover FOXDIE_OWNER_PK at startup
// without ever holding the plaintext key in an env var or config file.
func Decrypt(key []byte, enc string) (string, error) {
	data, err := hex.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decrypt: bad hex: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("decrypt: bad key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("decrypt: ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}

// Encrypt is the inverse of Decrypt, used by the provisioning tooling that
// produces the FOXDIE_OWNER_PK env value (outside the scope of this repo,
// kept here so the format has a single definition).
func Encrypt(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("encrypt: bad key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// LoadSigningKey parses a hex-encoded ECDSA private key (no 0x prefix
// required).
func LoadSigningKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(trimHexPrefix(hexKey))
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
