// Package token provides the client's token handling primitives.
//
// Tokens are secrets: they are never written to logs. Fingerprint yields a short,
// stable identifier that can be logged instead. Sealer encrypts the persisted
// credential pair at rest (XChaCha20-Poly1305 with an HKDF-derived key).
//
// Environment:
//   - PEDEX_CREDENTIAL_KEY: secret used to derive the sealing key.
//
// Policy:
//   - If sealed credentials are required, callers MUST enforce a minimum key size
//     (>= 32 bytes) and MUST refuse to persist plaintext.
package token
