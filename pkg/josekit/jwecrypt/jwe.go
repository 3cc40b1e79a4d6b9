// Package jwecrypt encrypts and decrypts the verifier's VP token response (§4.2 "WaitingForResponse
// → Done{Done} on successful JWE decrypt + transcript match + PoA verify"), using the
// ECDH-ES key agreement with A128GCM content encryption the disclosure protocol mandates.
package jwecrypt

import (
	"crypto/ecdsa"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwe"
)

// Encrypt wraps plaintext in a JWE compact-serialized message, using the verifier's ephemeral
// public key for ECDH-ES key agreement and A128GCM for content encryption.
func Encrypt(plaintext []byte, recipientPublicKey *ecdsa.PublicKey) ([]byte, error) {
	encrypted, err := jwe.Encrypt(plaintext, jwa.ECDH_ES, recipientPublicKey, jwa.A128GCM, jwa.NoCompress)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindCrypto, "could not encrypt jwe", err)
	}
	return encrypted, nil
}

// Decrypt unwraps a compact-serialized JWE produced by Encrypt using the recipient's private
// key, returning the original plaintext or a KindCrypto error if decryption or authentication
// fails.
func Decrypt(ciphertext []byte, recipientPrivateKey *ecdsa.PrivateKey) ([]byte, error) {
	plaintext, err := jwe.Decrypt(ciphertext, jwa.ECDH_ES, recipientPrivateKey)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindCrypto, "could not decrypt jwe", err)
	}
	return plaintext, nil
}
