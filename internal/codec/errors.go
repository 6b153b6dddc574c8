package codec

import "errors"

var (
	// ErrMissingSecret indicates no secret was configured. Fatal at startup.
	ErrMissingSecret = errors.New("codec: secret is not configured")

	// ErrMissingSalt indicates no salt was configured. Fatal at startup.
	ErrMissingSalt = errors.New("codec: salt is not configured")

	// ErrInvalidSalt indicates the configured salt is not valid base64.
	ErrInvalidSalt = errors.New("codec: salt is not valid base64")

	// ErrDecrypt indicates ciphertext could not be authenticated: wrong key,
	// truncated input, or corruption.
	ErrDecrypt = errors.New("codec: decryption failed (wrong key or corrupted data)")

	// ErrDecompress indicates bytes were not a valid compressed record.
	ErrDecompress = errors.New("codec: decompression failed")
)
