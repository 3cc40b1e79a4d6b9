package disclosure

import (
	"crypto/x509"
	"encoding/asn1"
	"encoding/json"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/openid4vp"
)

// ReaderRegistrationOID is the X.509 extension OID a verifier's leaf certificate carries its
// ReaderRegistration under, mirroring how pkg/androidattest locates the Android key_description
// extension by OID rather than by well-known field order.
var ReaderRegistrationOID = asn1.ObjectIdentifier{2, 16, 528, 1, 1006, 7, 1}

// ReaderRegistration is the verifier authorization the client checks a session's Authorization
// Request against (§4.2 "Extract the ReaderRegistration extension from the leaf"). It is carried
// as JSON inside the leaf certificate extension, keyed by attestation type (DCQL credential
// query's vct/doctype_value) to the claim paths that verifier is authorized to request.
type ReaderRegistration struct {
	Name                string              `json:"name"`
	AuthorizedAttributes map[string][]string `json:"authorized_attributes"`
}

// ExtractReaderRegistration locates and decodes the ReaderRegistration extension on cert,
// returning nil if the extension is absent.
func ExtractReaderRegistration(cert *x509.Certificate) (*ReaderRegistration, error) {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(ReaderRegistrationOID) {
			var reg ReaderRegistration
			if err := json.Unmarshal(ext.Value, &reg); err != nil {
				return nil, apierror.Wrap(apierror.KindMissingReaderRegistration, "could not decode reader registration extension", err)
			}
			return &reg, nil
		}
	}
	return nil, nil
}

// attestationType returns the credential query's target attestation type identifier, whichever
// format-specific meta field carries it.
func attestationType(q openid4vp.CredentialQuery) string {
	if q.Meta.DoctypeValue != "" {
		return q.Meta.DoctypeValue
	}
	if len(q.Meta.VCTValues) > 0 {
		return q.Meta.VCTValues[0]
	}
	return ""
}

// authorizes reports whether every claim a DCQL query asks for is a subset of what this
// ReaderRegistration authorizes for that query's attestation type (§4.2 "DCQL credential_requests
// in the auth request MUST be a subset of the ReaderRegistration's authorized_attributes").
func (r *ReaderRegistration) authorizes(dcql *openid4vp.DCQL) bool {
	for _, q := range dcql.Credentials {
		authorized, ok := r.AuthorizedAttributes[attestationType(q)]
		if !ok {
			return false
		}
		allowed := make(map[string]struct{}, len(authorized))
		for _, a := range authorized {
			allowed[a] = struct{}{}
		}
		for _, c := range q.Claims {
			if _, ok := allowed[joinPath(c.Path)]; !ok {
				return false
			}
		}
	}
	return true
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}
