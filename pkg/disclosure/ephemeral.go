package disclosure

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/session"
)

// EphemeralIDValidity bounds how old an ephemeral ID's timestamp may be before the
// request-URI endpoint rejects it as a replayed universal link (§4.2 "an ephemeral ID older
// than the configured validity is rejected").
const EphemeralIDValidity = 30 * time.Second

// EphemeralIDSecret computes ephemeral IDs over a process-wide HMAC secret (§4.2 "HMAC-SHA256
// over (session_token || time) with a process-wide secret"). The secret never leaves the
// process; it is not part of any persisted state.
type EphemeralIDSecret struct {
	key []byte
}

// NewEphemeralIDSecret wraps a process-wide HMAC key.
func NewEphemeralIDSecret(key []byte) EphemeralIDSecret { return EphemeralIDSecret{key: key} }

// Compute derives the ephemeral ID embedded in the request-URI's query for one status_response
// call. Calling it twice with different t values for the same token yields different IDs with
// overwhelming probability (§8 "Ephemeral IDs minted for token T at time t1 ≠ t2 differ").
func (s EphemeralIDSecret) Compute(token session.Token, t time.Time) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s|%d", token, t.Unix())
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks that id is the ephemeral ID for token at some time within EphemeralIDValidity
// of now (§4.2 "The request-URI endpoint verifies the ephemeral ID against the HMAC before
// returning the signed auth-request JWT").
func (s EphemeralIDSecret) Verify(id string, token session.Token, now time.Time) error {
	for offset := time.Duration(0); offset <= EphemeralIDValidity; offset += time.Second {
		candidate := s.Compute(token, now.Add(-offset))
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(id)) == 1 {
			return nil
		}
	}
	return apierror.New(apierror.KindUnauthorized, "ephemeral id is invalid or has expired")
}
