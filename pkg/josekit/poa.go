package josekit

import (
	"encoding/json"
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jws"
)

// PoAMaxAge bounds how old a Proof-of-Association's `iat` claim may be.
const PoAMaxAge = 60 * time.Second

// SignPoA builds a Proof-of-Association, general JSON serialization, with one signature per
// key in keys over a shared payload asserting audience and nonce (§4.1 "A Poa over ALL
// requested holder pubkeys", §4.2 disclose step 3 "PoA over all holder keys used"). keys holds
// raw ES256 private keys (*ecdsa.PrivateKey); the corresponding VerifyPoA call expects exactly
// one signature per expected public key.
func SignPoA(keys []any, audience, nonce string) (string, error) {
	payload, err := json.Marshal(poaPayload{Aud: audience, Nonce: nonce, IAT: time.Now().Unix()})
	if err != nil {
		return "", apierror.Wrap(apierror.KindCrypto, "marshaling poa payload", err)
	}

	opts := make([]jws.SignOption, 0, len(keys))
	for _, key := range keys {
		opts = append(opts, jws.WithKey(jwa.ES256, key))
	}
	signed, err := jws.SignMulti(payload, opts...)
	if err != nil {
		return "", apierror.Wrap(apierror.KindCrypto, "signing poa", err)
	}
	return string(signed), nil
}

// ErrPoaKeyCountMismatch reports that a PoA's signature count does not equal the number of
// keys it must demonstrate co-control over.
var ErrPoaKeyCountMismatch = apierror.New(apierror.KindPoaVerification, "poa signature count does not match the expected key set")

// ErrPoaAudienceMismatch reports that a PoA's `aud` claim does not match the expected
// audience (the issuer or verifier client_id, depending on context).
var ErrPoaAudienceMismatch = apierror.New(apierror.KindPoaVerification, "poa audience mismatch")

// ErrPoaNonceMismatch reports that a PoA's `nonce` claim does not match the session's current
// c_nonce.
var ErrPoaNonceMismatch = apierror.New(apierror.KindPoaVerification, "poa nonce does not match session c_nonce")

// ErrPoaSignatureInvalid reports that at least one of a PoA's per-key signatures did not
// verify against its claimed key.
var ErrPoaSignatureInvalid = apierror.New(apierror.KindPoaVerification, "poa contains an invalid signature")

type poaPayload struct {
	Aud   string `json:"aud"`
	Nonce string `json:"nonce"`
	IAT   int64  `json:"iat"`
}

// VerifyPoA verifies a Proof-of-Association (§2 glossary "PoA"): a JWS in general JSON
// serialization carrying one signature per key in expectedKeys, all over a shared payload
// asserting `aud` and `nonce`. Every expected key must contribute a valid signature; no extra
// signatures are permitted (§4.1 "A Poa over ALL requested holder pubkeys ... is required").
func VerifyPoA(poa string, expectedKeys []jwk.Key, expectedAudience, expectedNonce string) error {
	msg, err := jws.ParseString(poa)
	if err != nil {
		return apierror.Wrap(apierror.KindPoaVerification, "could not parse poa", err)
	}

	if len(msg.Signatures()) != len(expectedKeys) {
		return ErrPoaKeyCountMismatch
	}

	var payload poaPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		return apierror.Wrap(apierror.KindPoaVerification, "could not decode poa payload", err)
	}
	if payload.Aud != expectedAudience {
		return ErrPoaAudienceMismatch
	}
	if payload.Nonce != expectedNonce {
		return ErrPoaNonceMismatch
	}
	if time.Since(time.Unix(payload.IAT, 0)).Abs() > PoAMaxAge {
		return apierror.New(apierror.KindPoaVerification, "poa iat outside the allowed freshness window")
	}

	for _, key := range expectedKeys {
		pub, err := publicKeyMaterial(key)
		if err != nil {
			return apierror.Wrap(apierror.KindPoaVerification, "could not materialize poa key", err)
		}
		if _, err := jws.Verify([]byte(poa), jwa.ES256, pub); err != nil {
			return ErrPoaSignatureInvalid
		}
	}
	return nil
}
