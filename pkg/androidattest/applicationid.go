package androidattest

import (
	"encoding/asn1"

	"github.com/eudiwallet/core/pkg/apierror"
)

// AttestationPackageInfo is one app package bound into an AttestationApplicationId.
type AttestationPackageInfo struct {
	PackageName []byte
	Version     int64
}

type attestationPackageInfoASN1 struct {
	PackageName []byte
	Version     int64
}

// AttestationApplicationId identifies every app package and signing certificate permitted to
// use the attested key, encoded as its own ASN.1 SEQUENCE embedded inside an OCTET STRING under
// the attestation_application_id tag. It is decoded lazily, on demand, rather than eagerly at
// AuthorizationList construction time: most callers never inspect it (§9 "dynamic codec
// plumbing ... decode on demand, never speculatively").
type AttestationApplicationId struct {
	PackageInfos      []AttestationPackageInfo
	SignatureDigests  [][]byte
}

type attestationApplicationIdASN1 struct {
	PackageInfos     []attestationPackageInfoASN1 `asn1:"set"`
	SignatureDigests [][]byte                     `asn1:"set"`
}

// DecodeAttestationApplicationId parses the raw OCTET STRING payload of an
// attestation_application_id tag.
func DecodeAttestationApplicationId(raw []byte) (*AttestationApplicationId, error) {
	var decoded attestationApplicationIdASN1
	if _, err := asn1.Unmarshal(raw, &decoded); err != nil {
		return nil, apierror.Wrap(apierror.KindMessageParsing, "could not decode attestation_application_id", err)
	}

	out := &AttestationApplicationId{
		SignatureDigests: decoded.SignatureDigests,
	}
	for _, pi := range decoded.PackageInfos {
		out.PackageInfos = append(out.PackageInfos, AttestationPackageInfo{
			PackageName: pi.PackageName,
			Version:     pi.Version,
		})
	}
	return out, nil
}
