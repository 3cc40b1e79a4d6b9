package josekit

import (
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
)

// PoPMaxAge bounds how old a per-copy proof-of-possession JWT's `iat` claim may be.
const PoPMaxAge = 60 * time.Second

// VerifyPoP verifies one credential request's per-copy Proof-of-Possession JWT (§4.1
// "per-copy PoP JWTs"): the proof must be signed by the key it claims to bind, addressed to
// the issuer (`aud`), and carry the session's current `c_nonce` undisturbed — a stale or
// substituted nonce means the proof was replayed from an earlier token/credential exchange.
func VerifyPoP(proof, expectedAudience, expectedNonce string) (jwk.Key, error) {
	var key jwk.Key
	token, err := jwt.Parse(proof, func(t *jwt.Token) (interface{}, error) {
		typ, _ := t.Header["typ"].(string)
		if typ != "openid4vci-proof+jwt" {
			return nil, apierror.New(apierror.KindMissingPoP, "pop proof has unexpected typ header")
		}
		rawJWK, ok := t.Header["jwk"]
		if !ok {
			return nil, apierror.New(apierror.KindMissingPoP, "pop proof is missing an embedded jwk")
		}
		var err error
		key, err = jwkFromHeader(rawJWK)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMissingPoP, "could not parse pop proof jwk", err)
		}
		return publicKeyMaterial(key)
	}, jwt.WithValidMethods([]string{"ES256", "ES384", "ES512", "EdDSA"}))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMissingPoP, "pop proof signature invalid", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New(apierror.KindMissingPoP, "pop proof has malformed claims")
	}

	aud, _ := claims["aud"].(string)
	if aud != expectedAudience {
		return nil, apierror.New(apierror.KindMissingPoP, "pop proof aud mismatch")
	}
	nonce, _ := claims["nonce"].(string)
	if nonce != expectedNonce {
		return nil, apierror.New(apierror.KindIncorrectNonce, "pop proof nonce does not match session c_nonce")
	}
	iat, _ := claims["iat"].(float64)
	if time.Since(time.Unix(int64(iat), 0)).Abs() > PoPMaxAge {
		return nil, apierror.New(apierror.KindMissingPoP, "pop proof iat outside the allowed freshness window")
	}

	return key, nil
}
