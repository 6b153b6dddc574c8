package codec

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 round count used unless configured.
	DefaultIterations = 210_000

	// MinIterations is the lowest round count accepted from configuration.
	MinIterations = 100_000

	// KeySize is the derived key length in bytes.
	KeySize = chacha20poly1305.KeySize
)

// header prefixes every ciphertext and is bound as additional data.
var header = []byte("TRV\x01")

// DeriveKey derives a symmetric key from secret and salt with
// PBKDF2-HMAC-SHA256. The same inputs always yield the same key.
func DeriveKey(secret string, salt []byte, iterations int) ([]byte, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if len(salt) == 0 {
		return nil, ErrMissingSalt
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("derive key: iterations must be positive, got %d", iterations)
	}
	return pbkdf2.Key([]byte(secret), salt, iterations, KeySize, sha256.New), nil
}

// DecodeSalt decodes a base64 (standard or URL alphabet) salt.
func DecodeSalt(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrMissingSalt
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if salt, err := enc.DecodeString(encoded); err == nil && len(salt) > 0 {
			return salt, nil
		}
	}
	return nil, ErrInvalidSalt
}

// Encrypt seals plaintext with XChaCha20-Poly1305 under key.
// Layout: header || nonce || ciphertext+tag.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("encrypt: nonce: %w", err)
	}

	out := make([]byte, 0, len(header)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, header), nil
}

// Decrypt authenticates and opens ciphertext produced by Encrypt.
// Every failure wraps ErrDecrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	minLen := len(header) + aead.NonceSize() + aead.Overhead()
	if len(ciphertext) < minLen {
		return nil, fmt.Errorf("%w: input truncated (%d bytes)", ErrDecrypt, len(ciphertext))
	}
	if !bytes.Equal(ciphertext[:len(header)], header) {
		return nil, fmt.Errorf("%w: unrecognised header", ErrDecrypt)
	}

	body := ciphertext[len(header):]
	nonce, sealed := body[:aead.NonceSize()], body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// IsEncrypted reports whether data carries the ciphertext header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, header)
}
