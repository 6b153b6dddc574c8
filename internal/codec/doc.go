// Package codec turns records into the opaque bytes stored at rest.
//
// Two independent layers are provided:
//   - Compression: canonical JSON (sorted keys, no HTML escaping) wrapped in gzip
//   - Encryption: XChaCha20-Poly1305 under a key derived with PBKDF2-HMAC-SHA256
//
// The layers compose as Seal = Encrypt(Compress(v)) and Open = Decompress(Decrypt(b)).
// Decrypt never returns unauthenticated bytes: a wrong key, a truncated blob, or
// any bit flip yields ErrDecrypt.
//
// Key derivation is deliberately slow (DefaultIterations rounds). It is a
// synchronous, non-cancellable unit of work; callers derive once and reuse the
// Codec.
package codec
