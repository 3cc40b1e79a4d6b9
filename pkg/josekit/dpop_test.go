package josekit_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/eudiwallet/core/pkg/josekit"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/stretchr/testify/require"
)

func buildDPoPProof(t *testing.T, key *ecdsa.PrivateKey, htm, htu, nonce string, iat time.Time) string {
	t.Helper()

	pubKey, err := jwk.New(&key.PublicKey)
	require.NoError(t, err)
	encoded, err := json.Marshal(pubKey)
	require.NoError(t, err)
	var jwkHeader map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &jwkHeader))

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"jti":   "proof-1",
		"htm":   htm,
		"htu":   htu,
		"iat":   iat.Unix(),
		"nonce": nonce,
	})
	token.Header["typ"] = "dpop+jwt"
	token.Header["jwk"] = jwkHeader

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestVerifyDPoPAcceptsFreshProof(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	proof := buildDPoPProof(t, key, "POST", "https://issuer.example/issuance/token", "wallet-nonce-1", time.Now())

	gotKey, err := josekit.VerifyDPoP(proof, "POST", "https://issuer.example/issuance/token", "", "wallet-nonce-1")
	require.NoError(t, err)
	require.NotNil(t, gotKey)
}

func TestVerifyDPoPRejectsMethodMismatch(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	proof := buildDPoPProof(t, key, "GET", "https://issuer.example/issuance/token", "wallet-nonce-1", time.Now())

	_, err = josekit.VerifyDPoP(proof, "POST", "https://issuer.example/issuance/token", "", "wallet-nonce-1")
	require.Error(t, err)
}

func TestVerifyDPoPRejectsStaleProof(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	proof := buildDPoPProof(t, key, "POST", "https://issuer.example/issuance/token", "wallet-nonce-1", time.Now().Add(-10*time.Minute))

	_, err = josekit.VerifyDPoP(proof, "POST", "https://issuer.example/issuance/token", "", "wallet-nonce-1")
	require.Error(t, err)
}
