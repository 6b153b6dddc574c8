package codec

import "fmt"

// Codec holds a derived key and applies both layers.
// Construct once per process: New runs the key derivation.
type Codec struct {
	key []byte
}

// New derives the key for secret and the base64-encoded salt.
// Missing or malformed inputs return ErrMissingSecret, ErrMissingSalt or
// ErrInvalidSalt; callers treat these as fatal configuration errors.
func New(secret, encodedSalt string, iterations int) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	salt, err := DecodeSalt(encodedSalt)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(secret, salt, iterations)
	if err != nil {
		return nil, err
	}
	return &Codec{key: key}, nil
}

// NewWithKey wraps an already derived key.
func NewWithKey(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("codec: key must be %d bytes, got %d", KeySize, len(key))
	}
	return &Codec{key: append([]byte(nil), key...)}, nil
}

// Seal compresses then encrypts v.
func (c *Codec) Seal(v any) ([]byte, error) {
	compressed, err := Compress(v)
	if err != nil {
		return nil, err
	}
	return Encrypt(compressed, c.key)
}

// Open decrypts then decompresses data into v.
func (c *Codec) Open(data []byte, v any) error {
	compressed, err := Decrypt(data, c.key)
	if err != nil {
		return err
	}
	return Decompress(compressed, v)
}
