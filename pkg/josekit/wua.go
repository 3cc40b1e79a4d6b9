package josekit

import (
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
)

// WUAMaxAge bounds how old a Wallet Unit Attestation's `iat` claim may be accepted.
const WUAMaxAge = 30 * 24 * time.Hour

// VerifyWUA verifies a Wallet Unit Attestation JWT issued by a trusted wallet provider,
// returning the embedded wallet-holder public key it attests to (§2 glossary "WUA"). trustRoot
// verifies the attestation's own signature: the WUA itself is signed by the wallet provider,
// not by the key it attests to, so verification here needs the provider's public key rather
// than a key embedded in the token.
func VerifyWUA(attestation string, trustRoot jwk.Key, expectedIssuer string) (jwk.Key, error) {
	pub, err := publicKeyMaterial(trustRoot)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindWuaVerification, "could not materialize wua trust root key", err)
	}

	token, err := jwt.Parse(attestation, func(t *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"ES256", "ES384", "ES512", "EdDSA"}))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindWuaVerification, "wua signature invalid", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New(apierror.KindWuaVerification, "wua has malformed claims")
	}

	iss, _ := claims["iss"].(string)
	if iss != expectedIssuer {
		return nil, apierror.New(apierror.KindWuaVerification, "wua issuer mismatch")
	}
	iat, _ := claims["iat"].(float64)
	if time.Since(time.Unix(int64(iat), 0)) > WUAMaxAge {
		return nil, apierror.New(apierror.KindWuaVerification, "wua is past its accepted validity window")
	}

	cnf, ok := claims["cnf"].(map[string]interface{})
	if !ok {
		return nil, apierror.New(apierror.KindWuaVerification, "wua is missing a cnf.jwk holder key binding")
	}
	rawJWK, ok := cnf["jwk"]
	if !ok {
		return nil, apierror.New(apierror.KindWuaVerification, "wua cnf claim is missing jwk")
	}
	holderKey, err := jwkFromHeader(rawJWK)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindWuaVerification, "could not parse wua holder jwk", err)
	}
	return holderKey, nil
}
