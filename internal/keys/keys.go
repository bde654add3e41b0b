// Package keys holds what the server knows about user key material. Keys
// are opaque to the server: it never encrypts, decrypts or signs.
package keys

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a short, stable digest of a public key for logs and
// out-of-band comparison. Surrounding whitespace is ignored so PEM blobs
// with and without a trailing newline agree.
func Fingerprint(publicKey string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(publicKey)))
	return hex.EncodeToString(sum[:8])
}

// Format groups a fingerprint in blocks of four for display.
func Format(fingerprint string) string {
	var b strings.Builder
	for i, r := range fingerprint {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
