package androidattest

import (
	"encoding/asn1"

	"github.com/eudiwallet/core/pkg/apierror"
)

// authorizationListASN1 mirrors the AuthorizationList SEQUENCE embedded (twice: once as
// software_enforced, once as hardware_enforced) inside the key_description extension. Every
// field is OPTIONAL and EXPLICITly tagged with its KeyMint tag number; presence, not value,
// of a NULL-typed field (e.g. rollback_resistance) signals a boolean authorization, so those
// fields decode into asn1.RawValue and are tested for emptiness rather than unmarshaled
// further.
//
// Tag numbers follow the public KeyMint/Keystore tag catalogue
// (https://source.android.com/docs/security/features/keystore/tags).
type authorizationListASN1 struct {
	Purpose           []int64       `asn1:"optional,explicit,tag:1,set"`
	Algorithm         *int64        `asn1:"optional,explicit,tag:2"`
	KeySize           *int64        `asn1:"optional,explicit,tag:3"`
	Digest            []int64       `asn1:"optional,explicit,tag:5,set"`
	Padding           []int64       `asn1:"optional,explicit,tag:6,set"`
	EcCurve           *int64        `asn1:"optional,explicit,tag:10"`
	RsaPublicExponent *int64        `asn1:"optional,explicit,tag:200"`
	MgfDigest         []int64       `asn1:"optional,explicit,tag:203,set"`

	RollbackResistance asn1.RawValue `asn1:"optional,explicit,tag:303"`
	EarlyBootOnly       asn1.RawValue `asn1:"optional,explicit,tag:305"`

	ActiveDateTime             *int64 `asn1:"optional,explicit,tag:400"`
	OriginationExpireDateTime  *int64 `asn1:"optional,explicit,tag:401"`
	UsageExpireDateTime        *int64 `asn1:"optional,explicit,tag:402"`
	UsageCountLimit            *int64 `asn1:"optional,explicit,tag:405"`

	NoAuthRequired               asn1.RawValue `asn1:"optional,explicit,tag:503"`
	UserAuthType                 *int64        `asn1:"optional,explicit,tag:504"`
	AuthTimeout                  *int64        `asn1:"optional,explicit,tag:505"`
	AllowWhileOnBody             asn1.RawValue `asn1:"optional,explicit,tag:506"`
	TrustedUserPresenceRequired  asn1.RawValue `asn1:"optional,explicit,tag:507"`
	TrustedConfirmationRequired  asn1.RawValue `asn1:"optional,explicit,tag:508"`
	UnlockedDeviceRequired       asn1.RawValue `asn1:"optional,explicit,tag:509"`

	AllApplications asn1.RawValue `asn1:"optional,explicit,tag:600"`

	CreationDateTime *int64           `asn1:"optional,explicit,tag:701"`
	Origin           *int64           `asn1:"optional,explicit,tag:702"`
	RootOfTrust      *rootOfTrustASN1 `asn1:"optional,explicit,tag:704"`
	OsVersion        *int32           `asn1:"optional,explicit,tag:705"`
	OsPatchLevel     *int32           `asn1:"optional,explicit,tag:706"`

	AttestationApplicationId []byte `asn1:"optional,explicit,tag:709"`
	AttestationIdBrand       []byte `asn1:"optional,explicit,tag:710"`
	AttestationIdDevice      []byte `asn1:"optional,explicit,tag:711"`
	AttestationIdProduct     []byte `asn1:"optional,explicit,tag:712"`
	AttestationIdSerial      []byte `asn1:"optional,explicit,tag:713"`
	AttestationIdImei        []byte `asn1:"optional,explicit,tag:714"`
	AttestationIdMeid        []byte `asn1:"optional,explicit,tag:715"`
	AttestationIdManufacturer []byte `asn1:"optional,explicit,tag:716"`
	AttestationIdModel       []byte `asn1:"optional,explicit,tag:717"`

	VendorPatchLevel         *int32        `asn1:"optional,explicit,tag:718"`
	BootPatchLevel           *int32        `asn1:"optional,explicit,tag:719"`
	DeviceUniqueAttestation  asn1.RawValue `asn1:"optional,explicit,tag:720"`
	AttestationIdSecondImei []byte        `asn1:"optional,explicit,tag:723"`
}

func present(raw asn1.RawValue) bool { return len(raw.FullBytes) > 0 }

// AuthorizationList is the typed, validated form of an attestation's software_enforced or
// hardware_enforced authorization set (§4.4). NULL-typed fields from the wire format become
// plain bools; everything else keeps Option semantics via a pointer or, for collection tags,
// a nil-means-absent slice/map.
type AuthorizationList struct {
	Purpose           map[KeyPurpose]struct{}
	Algorithm         *Algorithm
	KeySize           *int64
	Digest            map[Digest]struct{}
	Padding           map[Padding]struct{}
	EcCurve           *EcCurve
	RsaPublicExponent *int64
	MgfDigest         map[Digest]struct{}

	RollbackResistance bool
	EarlyBootOnly      bool

	ActiveDateTime            *int64
	OriginationExpireDateTime *int64
	UsageExpireDateTime       *int64
	UsageCountLimit           *int64

	NoAuthRequired              bool
	UserAuthType                *HardwareAuthenticatorType
	AuthTimeout                 *int64
	AllowWhileOnBody            bool
	TrustedUserPresenceRequired bool
	TrustedConfirmationRequired bool
	UnlockedDeviceRequired      bool

	AllApplications bool

	CreationDateTime *int64
	Origin           *KeyOrigin
	RootOfTrust      *RootOfTrust
	OsVersion        *OsVersion
	OsPatchLevel     *PatchLevel

	attestationApplicationIdRaw []byte
	AttestationIdBrand          []byte
	AttestationIdDevice         []byte
	AttestationIdProduct        []byte
	AttestationIdSerial         []byte
	AttestationIdImei           []byte
	AttestationIdMeid           []byte
	AttestationIdManufacturer   []byte
	AttestationIdModel          []byte

	VendorPatchLevel         *PatchLevel
	BootPatchLevel           *PatchLevel
	DeviceUniqueAttestation  bool
	AttestationIdSecondImei  []byte
}

// ApplicationId lazily decodes the embedded attestation_application_id OCTET STRING, if
// present, the first time it is needed rather than at AuthorizationList construction (§9).
func (a *AuthorizationList) ApplicationId() (*AttestationApplicationId, error) {
	if a.attestationApplicationIdRaw == nil {
		return nil, nil
	}
	return DecodeAttestationApplicationId(a.attestationApplicationIdRaw)
}

func newAuthorizationList(raw *authorizationListASN1) (*AuthorizationList, error) {
	out := &AuthorizationList{
		KeySize:                    raw.KeySize,
		RsaPublicExponent:          raw.RsaPublicExponent,
		RollbackResistance:         present(raw.RollbackResistance),
		EarlyBootOnly:              present(raw.EarlyBootOnly),
		ActiveDateTime:             raw.ActiveDateTime,
		OriginationExpireDateTime:  raw.OriginationExpireDateTime,
		UsageExpireDateTime:        raw.UsageExpireDateTime,
		UsageCountLimit:            raw.UsageCountLimit,
		NoAuthRequired:             present(raw.NoAuthRequired),
		AuthTimeout:                raw.AuthTimeout,
		AllowWhileOnBody:           present(raw.AllowWhileOnBody),
		TrustedUserPresenceRequired: present(raw.TrustedUserPresenceRequired),
		TrustedConfirmationRequired: present(raw.TrustedConfirmationRequired),
		UnlockedDeviceRequired:     present(raw.UnlockedDeviceRequired),
		AllApplications:            present(raw.AllApplications),
		CreationDateTime:           raw.CreationDateTime,
		attestationApplicationIdRaw: raw.AttestationApplicationId,
		AttestationIdBrand:         raw.AttestationIdBrand,
		AttestationIdDevice:        raw.AttestationIdDevice,
		AttestationIdProduct:       raw.AttestationIdProduct,
		AttestationIdSerial:        raw.AttestationIdSerial,
		AttestationIdImei:          raw.AttestationIdImei,
		AttestationIdMeid:          raw.AttestationIdMeid,
		AttestationIdManufacturer:  raw.AttestationIdManufacturer,
		AttestationIdModel:         raw.AttestationIdModel,
		DeviceUniqueAttestation:    present(raw.DeviceUniqueAttestation),
		AttestationIdSecondImei:    raw.AttestationIdSecondImei,
	}

	if len(raw.Purpose) > 0 {
		values := make([]uint32, len(raw.Purpose))
		for i, v := range raw.Purpose {
			values[i] = uint32(v)
		}
		set, err := ParseKeyPurposeSet(values)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid purpose in authorization list", err)
		}
		out.Purpose = set
	}

	if raw.Algorithm != nil {
		alg, err := ParseAlgorithm(uint32(*raw.Algorithm))
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid algorithm in authorization list", err)
		}
		out.Algorithm = &alg
	}

	if len(raw.Digest) > 0 {
		values := make([]uint32, len(raw.Digest))
		for i, v := range raw.Digest {
			values[i] = uint32(v)
		}
		set, err := ParseDigestSet(values)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid digest in authorization list", err)
		}
		out.Digest = set
	}

	if len(raw.Padding) > 0 {
		values := make([]uint32, len(raw.Padding))
		for i, v := range raw.Padding {
			values[i] = uint32(v)
		}
		set, err := ParsePaddingSet(values)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid padding in authorization list", err)
		}
		out.Padding = set
	}

	if raw.EcCurve != nil {
		curve, err := ParseEcCurve(uint32(*raw.EcCurve))
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid ec_curve in authorization list", err)
		}
		out.EcCurve = &curve
	}

	if len(raw.MgfDigest) > 0 {
		values := make([]uint32, len(raw.MgfDigest))
		for i, v := range raw.MgfDigest {
			values[i] = uint32(v)
		}
		set, err := ParseDigestSet(values)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid mgf_digest in authorization list", err)
		}
		out.MgfDigest = set
	}

	if raw.UserAuthType != nil {
		t := HardwareAuthenticatorType(*raw.UserAuthType)
		out.UserAuthType = &t
	}

	if raw.Origin != nil {
		origin, err := ParseKeyOrigin(uint32(*raw.Origin))
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid origin in authorization list", err)
		}
		out.Origin = &origin
	}

	if raw.RootOfTrust != nil {
		bootState := VerifiedBootState(raw.RootOfTrust.VerifiedBootState)
		out.RootOfTrust = &RootOfTrust{
			VerifiedBootKey:   raw.RootOfTrust.VerifiedBootKey,
			DeviceLocked:      raw.RootOfTrust.DeviceLocked,
			VerifiedBootState: bootState,
			VerifiedBootHash:  raw.RootOfTrust.VerifiedBootHash,
		}
	}

	if raw.OsVersion != nil {
		v, err := ParseOsVersion(*raw.OsVersion)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid os_version in authorization list", err)
		}
		out.OsVersion = &v
	}

	if raw.OsPatchLevel != nil {
		p, err := ParsePatchLevel(*raw.OsPatchLevel)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid os_patch_level in authorization list", err)
		}
		out.OsPatchLevel = &p
	}

	if raw.VendorPatchLevel != nil {
		p, err := ParsePatchLevel(*raw.VendorPatchLevel)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid vendor_patch_level in authorization list", err)
		}
		out.VendorPatchLevel = &p
	}

	if raw.BootPatchLevel != nil {
		p, err := ParsePatchLevel(*raw.BootPatchLevel)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMessageParsing, "invalid boot_patch_level in authorization list", err)
		}
		out.BootPatchLevel = &p
	}

	return out, nil
}
