package combatlog

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// ErrDigestMismatch is returned when a stored payload no longer matches the
// digest it was stored under.
var ErrDigestMismatch = errors.New("combat log digest mismatch")

// Digest returns the hex BLAKE2b-256 of a raw log payload. Logs are immutable,
// so the digest identifies a log by content.
func Digest(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// VerifyDigest checks payload against a previously computed digest.
func VerifyDigest(payload []byte, digest string) error {
	if Digest(payload) != digest {
		return ErrDigestMismatch
	}
	return nil
}
