// Package androidattest decodes the Android Keystore/KeyMint key-description X.509
// extension (OID 1.3.6.1.4.1.11129.2.1.17), per §3.5/§4.4. The types here should handle all
// KeyMaster/KeyMint versions, so enums may carry more values than the latest KeyMint
// revision defines.
//
// References:
//   - Android documentation: https://source.android.com/docs/security/features/keystore/tags
//   - KeyMint source: https://android.googlesource.com/platform/system/keymint/
package androidattest

import "fmt"

// AttestationVersion is the schema version of the outer KeyDescription structure.
type AttestationVersion int32

const (
	AttestationV1   AttestationVersion = 1
	AttestationV2   AttestationVersion = 2
	AttestationV3   AttestationVersion = 3
	AttestationV4   AttestationVersion = 4
	AttestationV100 AttestationVersion = 100
	AttestationV200 AttestationVersion = 200
	AttestationV300 AttestationVersion = 300
)

// ErrInvalidAttestationVersion reports an encoded integer with no known AttestationVersion.
type ErrInvalidAttestationVersion int32

func (e ErrInvalidAttestationVersion) Error() string {
	return fmt.Sprintf("not a valid AttestationVersion: %d", int32(e))
}

// ParseAttestationVersion totally maps every known encoded value, rejecting the rest.
func ParseAttestationVersion(v int32) (AttestationVersion, error) {
	switch AttestationVersion(v) {
	case AttestationV1, AttestationV2, AttestationV3, AttestationV4,
		AttestationV100, AttestationV200, AttestationV300:
		return AttestationVersion(v), nil
	default:
		return 0, ErrInvalidAttestationVersion(v)
	}
}

// KeyMintVersion is the schema version of the KeyMint (or KeyMaster) implementation.
type KeyMintVersion int32

const (
	KeyMintV2   KeyMintVersion = 2
	KeyMintV3   KeyMintVersion = 3
	KeyMintV4   KeyMintVersion = 4
	KeyMintV41  KeyMintVersion = 41
	KeyMintV100 KeyMintVersion = 100
	KeyMintV200 KeyMintVersion = 200
	KeyMintV300 KeyMintVersion = 300
)

// ErrInvalidKeyMintVersion reports an encoded integer with no known KeyMintVersion.
type ErrInvalidKeyMintVersion int32

func (e ErrInvalidKeyMintVersion) Error() string {
	return fmt.Sprintf("not a valid KeyMintVersion: %d", int32(e))
}

// ParseKeyMintVersion totally maps every known encoded value, rejecting the rest.
func ParseKeyMintVersion(v int32) (KeyMintVersion, error) {
	switch KeyMintVersion(v) {
	case KeyMintV2, KeyMintV3, KeyMintV4, KeyMintV41, KeyMintV100, KeyMintV200, KeyMintV300:
		return KeyMintVersion(v), nil
	default:
		return 0, ErrInvalidKeyMintVersion(v)
	}
}

// KeyPurpose is one of the purposes a key was generated for. Keys carry a SET of these.
type KeyPurpose uint32

const (
	PurposeEncrypt   KeyPurpose = 0
	PurposeDecrypt   KeyPurpose = 1
	PurposeSign      KeyPurpose = 2
	PurposeVerify    KeyPurpose = 3
	PurposeDeriveKey KeyPurpose = 4 // used in KeyMaster, removed in KeyMint
	PurposeWrapKey   KeyPurpose = 5
	PurposeAgreeKey  KeyPurpose = 6
	PurposeAttestKey KeyPurpose = 7
)

// ErrInvalidKeyPurpose reports an encoded integer with no known KeyPurpose.
type ErrInvalidKeyPurpose uint32

func (e ErrInvalidKeyPurpose) Error() string { return fmt.Sprintf("not a valid KeyPurpose: %d", uint32(e)) }

// ParseKeyPurpose totally maps every known encoded value, rejecting the rest.
func ParseKeyPurpose(v uint32) (KeyPurpose, error) {
	switch KeyPurpose(v) {
	case PurposeEncrypt, PurposeDecrypt, PurposeSign, PurposeVerify,
		PurposeDeriveKey, PurposeWrapKey, PurposeAgreeKey, PurposeAttestKey:
		return KeyPurpose(v), nil
	default:
		return 0, ErrInvalidKeyPurpose(v)
	}
}

// ParseKeyPurposeSet parses a SET OF INTEGER of key purposes.
func ParseKeyPurposeSet(values []uint32) (map[KeyPurpose]struct{}, error) {
	out := make(map[KeyPurpose]struct{}, len(values))
	for _, v := range values {
		p, err := ParseKeyPurpose(v)
		if err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, nil
}

// Algorithm is the cryptographic algorithm a key was generated for.
type Algorithm uint32

const (
	AlgorithmRSA        Algorithm = 1
	AlgorithmEC         Algorithm = 3
	AlgorithmAES        Algorithm = 32
	AlgorithmTripleDES  Algorithm = 33
	AlgorithmHMAC       Algorithm = 128
)

// ErrInvalidAlgorithm reports an encoded integer with no known Algorithm.
type ErrInvalidAlgorithm uint32

func (e ErrInvalidAlgorithm) Error() string { return fmt.Sprintf("not a valid Algorithm: %d", uint32(e)) }

// ParseAlgorithm totally maps every known encoded value, rejecting the rest.
func ParseAlgorithm(v uint32) (Algorithm, error) {
	switch Algorithm(v) {
	case AlgorithmRSA, AlgorithmEC, AlgorithmAES, AlgorithmTripleDES, AlgorithmHMAC:
		return Algorithm(v), nil
	default:
		return 0, ErrInvalidAlgorithm(v)
	}
}

// Digest is a hash algorithm used for signing or key derivation.
type Digest uint32

const (
	DigestNone   Digest = 0
	DigestMD5    Digest = 1
	DigestSHA1   Digest = 2
	DigestSHA224 Digest = 3
	DigestSHA256 Digest = 4
	DigestSHA384 Digest = 5
	DigestSHA512 Digest = 6
)

// ErrInvalidDigest reports an encoded integer with no known Digest.
type ErrInvalidDigest uint32

func (e ErrInvalidDigest) Error() string { return fmt.Sprintf("not a valid Digest: %d", uint32(e)) }

// ParseDigest totally maps every known encoded value, rejecting the rest.
func ParseDigest(v uint32) (Digest, error) {
	switch Digest(v) {
	case DigestNone, DigestMD5, DigestSHA1, DigestSHA224, DigestSHA256, DigestSHA384, DigestSHA512:
		return Digest(v), nil
	default:
		return 0, ErrInvalidDigest(v)
	}
}

// ParseDigestSet parses a SET OF INTEGER of digests.
func ParseDigestSet(values []uint32) (map[Digest]struct{}, error) {
	out := make(map[Digest]struct{}, len(values))
	for _, v := range values {
		d, err := ParseDigest(v)
		if err != nil {
			return nil, err
		}
		out[d] = struct{}{}
	}
	return out, nil
}

// Padding is an RSA/AES padding scheme.
type Padding uint32

const (
	PaddingNone              Padding = 1
	PaddingRsaOaep           Padding = 2
	PaddingRsaPss            Padding = 3
	PaddingRsaPkcs1_1_5Enc   Padding = 4
	PaddingRsaPkcs1_1_5Sign  Padding = 5
	PaddingPkcs7             Padding = 64
)

// ErrInvalidPadding reports an encoded integer with no known Padding.
type ErrInvalidPadding uint32

func (e ErrInvalidPadding) Error() string { return fmt.Sprintf("not a valid Padding: %d", uint32(e)) }

// ParsePadding totally maps every known encoded value, rejecting the rest.
func ParsePadding(v uint32) (Padding, error) {
	switch Padding(v) {
	case PaddingNone, PaddingRsaOaep, PaddingRsaPss, PaddingRsaPkcs1_1_5Enc, PaddingRsaPkcs1_1_5Sign, PaddingPkcs7:
		return Padding(v), nil
	default:
		return 0, ErrInvalidPadding(v)
	}
}

// ParsePaddingSet parses a SET OF INTEGER of padding schemes.
func ParsePaddingSet(values []uint32) (map[Padding]struct{}, error) {
	out := make(map[Padding]struct{}, len(values))
	for _, v := range values {
		p, err := ParsePadding(v)
		if err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, nil
}

// EcCurve is an elliptic curve a key was generated on.
type EcCurve uint32

const (
	CurveP224      EcCurve = 0
	CurveP256      EcCurve = 1
	CurveP384      EcCurve = 2
	CurveP512      EcCurve = 3
	CurveCurve25519 EcCurve = 4
)

// ErrInvalidEcCurve reports an encoded integer with no known EcCurve.
type ErrInvalidEcCurve uint32

func (e ErrInvalidEcCurve) Error() string { return fmt.Sprintf("not a valid EcCurve: %d", uint32(e)) }

// ParseEcCurve totally maps every known encoded value, rejecting the rest.
func ParseEcCurve(v uint32) (EcCurve, error) {
	switch EcCurve(v) {
	case CurveP224, CurveP256, CurveP384, CurveP512, CurveCurve25519:
		return EcCurve(v), nil
	default:
		return 0, ErrInvalidEcCurve(v)
	}
}

// KeyOrigin describes where a key's material came from.
type KeyOrigin uint32

const (
	OriginGenerated        KeyOrigin = 0
	OriginDerived           KeyOrigin = 1
	OriginImported          KeyOrigin = 2
	OriginUnknown           KeyOrigin = 3
	OriginSecurelyImported  KeyOrigin = 4
)

// ErrInvalidKeyOrigin reports an encoded integer with no known KeyOrigin.
type ErrInvalidKeyOrigin uint32

func (e ErrInvalidKeyOrigin) Error() string { return fmt.Sprintf("not a valid KeyOrigin: %d", uint32(e)) }

// ParseKeyOrigin totally maps every known encoded value, rejecting the rest.
func ParseKeyOrigin(v uint32) (KeyOrigin, error) {
	switch KeyOrigin(v) {
	case OriginGenerated, OriginDerived, OriginImported, OriginUnknown, OriginSecurelyImported:
		return KeyOrigin(v), nil
	default:
		return 0, ErrInvalidKeyOrigin(v)
	}
}

// SecurityLevel indicates where key material and operations are protected.
type SecurityLevel int

const (
	SecurityLevelSoftware           SecurityLevel = 0
	SecurityLevelTrustedEnvironment SecurityLevel = 1
	SecurityLevelStrongBox          SecurityLevel = 2
)

func (s SecurityLevel) String() string {
	switch s {
	case SecurityLevelSoftware:
		return "software"
	case SecurityLevelTrustedEnvironment:
		return "trusted_environment"
	case SecurityLevelStrongBox:
		return "strongbox"
	default:
		return "unknown"
	}
}

// ErrSecurityLevelNotHardwareBacked reports a SecurityLevel that isn't hardware-backed,
// returned by SecurityLevel.Verify when emulatorKeysAllowed is false.
type ErrSecurityLevelNotHardwareBacked SecurityLevel

func (e ErrSecurityLevelNotHardwareBacked) Error() string {
	return fmt.Sprintf("security requirements not met for security level: %s", SecurityLevel(e))
}

// Verify enforces that s is hardware-backed (TrustedEnvironment or StrongBox), unless
// emulatorKeysAllowed permits Software-level keys (for emulator-based testing, §4.4:
// "at minimum TrustedEnvironment unless emulator keys are allowed by configuration").
func (s SecurityLevel) Verify(emulatorKeysAllowed bool) error {
	if emulatorKeysAllowed {
		return nil
	}
	if s == SecurityLevelTrustedEnvironment || s == SecurityLevelStrongBox {
		return nil
	}
	return ErrSecurityLevelNotHardwareBacked(s)
}

// VerifiedBootState is the device's verified-boot outcome at the time the key was generated.
type VerifiedBootState int

const (
	VerifiedBootVerified   VerifiedBootState = 0
	VerifiedBootSelfSigned VerifiedBootState = 1
	VerifiedBootUnverified VerifiedBootState = 2
	VerifiedBootFailed     VerifiedBootState = 3
)

func (v VerifiedBootState) String() string {
	switch v {
	case VerifiedBootVerified:
		return "verified"
	case VerifiedBootSelfSigned:
		return "self_signed"
	case VerifiedBootUnverified:
		return "unverified"
	case VerifiedBootFailed:
		return "failed"
	default:
		return "unknown"
	}
}
