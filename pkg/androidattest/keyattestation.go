package androidattest

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/eudiwallet/core/pkg/apierror"
)

// KeyDescriptionOID is the X.509 extension OID Android Keystore/KeyMint key attestation
// certificates carry their KeyDescription SEQUENCE under.
var KeyDescriptionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 1, 17}

type keyDescriptionASN1 struct {
	AttestationVersion       int32
	AttestationSecurityLevel asn1.Enumerated
	KeyMintVersion           int32
	KeyMintSecurityLevel     asn1.Enumerated
	AttestationChallenge     []byte
	UniqueId                 []byte
	SoftwareEnforced         authorizationListASN1
	HardwareEnforced         authorizationListASN1
}

// KeyDescription is the directly-decoded (but not yet semantically validated) contents of the
// key_description extension.
type KeyDescription struct {
	AttestationVersion       AttestationVersion
	AttestationSecurityLevel SecurityLevel
	KeyMintVersion           KeyMintVersion
	KeyMintSecurityLevel     SecurityLevel
	AttestationChallenge     []byte
	UniqueId                 []byte
	SoftwareEnforced         AuthorizationList
	HardwareEnforced         AuthorizationList
}

// ExtractKeyDescription locates and decodes the key_description extension on cert, returning
// nil if the extension is absent.
func ExtractKeyDescription(cert *x509.Certificate) (*KeyDescription, error) {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(KeyDescriptionOID) {
			return decodeKeyDescription(ext.Value)
		}
	}
	return nil, nil
}

func decodeKeyDescription(raw []byte) (*KeyDescription, error) {
	var decoded keyDescriptionASN1
	if _, err := asn1.Unmarshal(raw, &decoded); err != nil {
		return nil, apierror.Wrap(apierror.KindMdocVerification, "could not decode key_description extension", err)
	}

	attestationVersion, err := ParseAttestationVersion(decoded.AttestationVersion)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMdocVerification, "invalid attestation_version", err)
	}
	keyMintVersion, err := ParseKeyMintVersion(decoded.KeyMintVersion)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMdocVerification, "invalid key_mint_version", err)
	}

	softwareEnforced, err := newAuthorizationList(&decoded.SoftwareEnforced)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMdocVerification, "invalid software_enforced authorization list", err)
	}
	hardwareEnforced, err := newAuthorizationList(&decoded.HardwareEnforced)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMdocVerification, "invalid hardware_enforced authorization list", err)
	}

	return &KeyDescription{
		AttestationVersion:       attestationVersion,
		AttestationSecurityLevel: SecurityLevel(decoded.AttestationSecurityLevel),
		KeyMintVersion:           keyMintVersion,
		KeyMintSecurityLevel:     SecurityLevel(decoded.KeyMintSecurityLevel),
		AttestationChallenge:     decoded.AttestationChallenge,
		UniqueId:                 decoded.UniqueId,
		SoftwareEnforced:         *softwareEnforced,
		HardwareEnforced:         *hardwareEnforced,
	}, nil
}

// KeyAttestation is a KeyDescription that has passed verification against an expected
// attestation challenge and minimum security-level requirements (§4.4).
type KeyAttestation struct {
	KeyDescription
}

// ErrAttestationChallengeMismatch reports that the decoded attestation_challenge does not
// equal the challenge the caller supplied to the attestation request.
var ErrAttestationChallengeMismatch = apierror.New(apierror.KindMdocVerification, "attestation challenge does not match")

// Verify checks desc's attestation_challenge against expectedChallenge and both
// attestation_security_level and key_mint_security_level against the minimum required level
// (hardware-backed, unless emulatorKeysAllowed permits software-level keys for testing).
func Verify(desc *KeyDescription, expectedChallenge []byte, emulatorKeysAllowed bool) (*KeyAttestation, error) {
	if !bytes.Equal(desc.AttestationChallenge, expectedChallenge) {
		return nil, ErrAttestationChallengeMismatch
	}
	if err := desc.AttestationSecurityLevel.Verify(emulatorKeysAllowed); err != nil {
		return nil, apierror.Wrap(apierror.KindMdocVerification,
			fmt.Sprintf("attestation_security_level: %s", err), err)
	}
	if err := desc.KeyMintSecurityLevel.Verify(emulatorKeysAllowed); err != nil {
		return nil, apierror.Wrap(apierror.KindMdocVerification,
			fmt.Sprintf("key_mint_security_level: %s", err), err)
	}
	return &KeyAttestation{KeyDescription: *desc}, nil
}
