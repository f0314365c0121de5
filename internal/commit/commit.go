// Package commit publishes a binding commitment to a game's secret number.
//
// The commitment is sha256(nonce || secret) in hex. The nonce is 32 random
// bytes kept next to the secret, so the 256 possible secrets cannot be
// recovered by hashing each candidate. Revealing the nonce and secret later
// lets anyone check the operator did not change the number.
package commit

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// NonceSize is the length of a commitment nonce in bytes.
const NonceSize = 32

// NewNonce draws a fresh nonce from crypto/rand.
func NewNonce() ([]byte, error) {
	b := make([]byte, NonceSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return b, nil
}

// Commit returns the hex commitment for secret under nonce.
func Commit(nonce []byte, secret uint8) string {
	h := sha256.New()
	h.Write(nonce)
	h.Write([]byte{secret})
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether nonce and secret open commitment.
func Verify(commitment string, nonce []byte, secret uint8) bool {
	want := Commit(nonce, secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(commitment)) == 1
}
