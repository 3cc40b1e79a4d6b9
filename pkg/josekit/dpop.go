// Package josekit implements the HTTP- and session-boundary crypto primitives shared by the
// issuance and disclosure engines (§2 "Shared crypto (JWT, DPoP, JWE, PoA, WUA)"): DPoP proof
// verification, per-copy proof-of-possession, proof-of-association over multiple holder keys,
// wallet-unit-attestation verification, and JWE encryption for the verifier response.
package josekit

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
)

// DPoPMaxAge bounds how old a DPoP proof's `iat` claim may be (§4.1 DPoP freshness check).
const DPoPMaxAge = 60 * time.Second

// DPoPClaims is the decoded payload of a DPoP proof JWT (RFC 9449).
type DPoPClaims struct {
	JTI string `json:"jti"`
	HTM string `json:"htm"`
	HTU string `json:"htu"`
	IAT int64  `json:"iat"`
	ATH string `json:"ath,omitempty"`
	Nonce string `json:"nonce,omitempty"`
}

// VerifyDPoP verifies a DPoP proof JWT against the expected HTTP method/URI, an optional bound
// access token (whose hash must match `ath`), and an optional expected nonce. It returns the
// proof's embedded public key, which callers compare against the key bound to the access
// token or session (§8 "DPoP-key-mismatch always yields Unauthorized regardless of whether the
// access token itself is otherwise valid").
func VerifyDPoP(proof, htm, htu string, accessToken string, expectedNonce string) (jwk.Key, error) {
	token, err := jwt.Parse(proof, func(t *jwt.Token) (interface{}, error) {
		typ, _ := t.Header["typ"].(string)
		if typ != "dpop+jwt" {
			return nil, apierror.New(apierror.KindDpopInvalid, "dpop proof has unexpected typ header")
		}
		rawJWK, ok := t.Header["jwk"]
		if !ok {
			return nil, apierror.New(apierror.KindDpopInvalid, "dpop proof is missing an embedded jwk")
		}
		key, err := jwkFromHeader(rawJWK)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindDpopInvalid, "could not parse dpop proof jwk", err)
		}
		return publicKeyMaterial(key)
	}, jwt.WithValidMethods([]string{"ES256", "ES384", "ES512", "EdDSA"}))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDpopInvalid, "dpop proof signature invalid", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New(apierror.KindDpopInvalid, "dpop proof has malformed claims")
	}

	if v, _ := claims["htm"].(string); v != htm {
		return nil, apierror.New(apierror.KindDpopInvalid, "dpop proof htm mismatch")
	}
	if v, _ := claims["htu"].(string); v != htu {
		return nil, apierror.New(apierror.KindDpopInvalid, "dpop proof htu mismatch")
	}
	iat, _ := claims["iat"].(float64)
	if time.Since(time.Unix(int64(iat), 0)).Abs() > DPoPMaxAge {
		return nil, apierror.New(apierror.KindDpopInvalid, "dpop proof iat outside the allowed freshness window")
	}
	if accessToken != "" {
		ath, _ := claims["ath"].(string)
		if ath != accessTokenHash(accessToken) {
			return nil, apierror.New(apierror.KindDpopInvalid, "dpop proof ath does not match the access token")
		}
	}
	if expectedNonce != "" {
		nonce, _ := claims["nonce"].(string)
		if nonce != expectedNonce {
			return nil, apierror.New(apierror.KindDpopInvalid, "dpop proof nonce mismatch")
		}
	}

	rawJWK := token.Header["jwk"]
	key, err := jwkFromHeader(rawJWK)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDpopInvalid, "could not re-parse dpop proof jwk", err)
	}
	return key, nil
}

// accessTokenHash computes the RFC 9449 `ath` value: base64url(SHA-256(access_token)).
func accessTokenHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func jwkFromHeader(raw interface{}) (jwk.Key, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, apierror.New(apierror.KindDpopInvalid, "embedded jwk header is not an object")
	}
	return jwk.New(m)
}

// publicKeyMaterial returns the Go crypto public key jwt.Parse needs to verify the proof's
// signature.
func publicKeyMaterial(key jwk.Key) (interface{}, error) {
	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Thumbprint computes the RFC 7638 JWK thumbprint, used to bind a DPoP key to an access token
// (the `cnf.jkt` claim) and to detect a DPoP key swap across a session.
func Thumbprint(key jwk.Key) (string, error) {
	sum, err := key.Thumbprint(sha256.New)
	if err != nil {
		return "", apierror.Wrap(apierror.KindDpopInvalid, "could not compute jwk thumbprint", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
