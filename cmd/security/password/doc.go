// Package password provides Argon2id credential hashing for the self-hosted
// backend mode of subdash.
//
// Hashes use a PHC-like encoded string format:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Strength policy (length, character classes) is not this package's job; see
// cmd/security/credential. This package only turns an accepted password into
// a hash and verifies candidates against stored hashes.
//
// Security notes:
//   - Stored hash strings are treated as untrusted input during Verify.
//   - Verification refuses hashes whose cost parameters exceed sane bounds,
//     so a hostile hash string cannot drive pathological resource usage.
package password
