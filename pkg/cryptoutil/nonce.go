// Package cryptoutil provides the random-value primitives shared by the issuance and
// disclosure engines: c_nonce, dpop_nonce, wallet_nonce and ephemeral-id material.
package cryptoutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/dchest/uniuri"
)

// RandomNonce returns a cryptographically secure, base64url-encoded nonce of n random bytes.
// Used for c_nonce and dpop_nonce (§4.1: "32 bytes random, base64").
func RandomNonce(n int) (string, error) {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("crypto/rand is unavailable: %w", err)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

// RandomNonceWithLength returns an n-character random string suitable for values that don't
// need to be cryptographically unpredictable across the whole 256-bit space, e.g. a
// wallet_nonce echoed once in a single POST body (§4.2 step 4: "a 32-char random
// wallet_nonce").
func RandomNonceWithLength(n int) string {
	return uniuri.NewLen(n)
}
