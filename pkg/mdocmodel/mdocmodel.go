// Package mdocmodel bridges the attribute tree model (pkg/attributes) and the mdoc wire
// format (pkg/mdoc), per §2 "mdoc credential model" and §4.1's mso_mdoc issuance path. It owns
// the namespace/entry shape attribute trees convert to and from, and the MSO digest
// commitment over that shape; the CBOR/COSE wire mechanics themselves stay in pkg/mdoc, which
// already implements ISO 18013-5 encoding faithfully.
package mdocmodel

import (
	"crypto"
	"crypto/x509"
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/attributes"
	"github.com/eudiwallet/core/pkg/mdoc"
	"github.com/fxamacker/cbor/v2"
	"github.com/multiformats/go-multibase"
)

// BuildIssuerNameSpaces converts a validated attribute tree (already checked against its type
// metadata, §4.1 step "validate attribute tree against type metadata") into the namespace/entry
// shape the MSO digests and the issuer-signed document commit to.
func BuildIssuerNameSpaces(attestationType string, tree *attributes.Attributes) *attributes.NamespacedEntries {
	return tree.ToMdocAttributes(attestationType)
}

// ParseIssuerNameSpaces is the inverse of BuildIssuerNameSpaces: it rebuilds the attribute
// tree a verifier or wallet should see from disclosed namespace entries, validating every
// entry is accounted for by metadata (§8 round-trip invariant: from_mdoc_attributes(metadata,
// to_mdoc_attributes(metadata, attrs)) = attrs whenever attrs validates).
func ParseIssuerNameSpaces(metadata metadataView, namespaced *attributes.NamespacedEntries) (*attributes.Attributes, error) {
	return attributes.FromMdocAttributes(metadata, namespaced)
}

// metadataView is the same narrow contract pkg/attributes consumes; declared again here (Go
// has no re-export) so callers in this package don't need to import pkg/typemetadata directly.
type metadataView interface {
	VCT() string
	ClaimKeyPaths() [][]string
}

// SigningRequest is everything BuildMSO needs to produce a signed Mobile Security Object for
// one document.
type SigningRequest struct {
	DocType    string
	ValidFrom  time.Time
	ValidUntil time.Time
	DeviceKey  *mdoc.COSEKey
	SignerKey  crypto.Signer
	CertChain  []*x509.Certificate
	NameSpaces *attributes.NamespacedEntries
}

// SignedDocument is the issuer-signed output of BuildMSO: the COSE_Sign1-wrapped Mobile
// Security Object plus the tagged, digest-committed IssuerNameSpaces it was computed over.
type SignedDocument struct {
	MSO              *mdoc.COSESign1
	IssuerNameSpaces mdoc.IssuerNameSpaces
}

// BuildMSO commits to every namespace entry with a fresh per-entry digest and returns the
// signed Mobile Security Object, ready to embed as the IssuerAuth of an IssuerSigned
// structure (ISO 18013-5 §9.1.2.4).
func BuildMSO(req SigningRequest) (*SignedDocument, error) {
	builder := mdoc.NewMSOBuilder(req.DocType).
		WithValidity(req.ValidFrom, req.ValidUntil).
		WithDeviceKey(req.DeviceKey).
		WithSigner(req.SignerKey, req.CertChain)

	for _, ns := range req.NameSpaces.Keys() {
		entries, _ := req.NameSpaces.Get(ns)
		for _, entry := range entries {
			if err := builder.AddDataElement(ns, entry.Name, valueAsCBOR(entry.Value)); err != nil {
				return nil, apierror.Wrap(apierror.KindMdocVerification, "could not add mdoc data element", err)
			}
		}
	}

	mso, nameSpaces, err := builder.Build()
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMdocVerification, "could not sign mobile security object", err)
	}
	return &SignedDocument{MSO: mso, IssuerNameSpaces: nameSpaces}, nil
}

// Reference returns a stable, URL-safe multibase-encoded (base64url, prefix "u") identifier for
// d's CBOR-encoded IssuerNameSpaces, for log correlation and out-of-band document references
// without re-transmitting or re-encoding the full signed document.
func (d *SignedDocument) Reference() (string, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return "", apierror.Wrap(apierror.KindMdocVerification, "could not encode issuer namespaces for reference", err)
	}
	raw, err := em.Marshal(d.IssuerNameSpaces)
	if err != nil {
		return "", apierror.Wrap(apierror.KindMdocVerification, "could not encode issuer namespaces for reference", err)
	}
	ref, err := multibase.Encode(multibase.Base64url, raw)
	if err != nil {
		return "", apierror.Wrap(apierror.KindMdocVerification, "could not multibase-encode document reference", err)
	}
	return ref, nil
}

// valueAsCBOR converts an attribute leaf value into a plain Go value the CBOR encoder in
// pkg/mdoc understands natively (string, int64, bool, or a nested array of the same).
func valueAsCBOR(v attributes.AttributeValue) any {
	switch v.Kind {
	case attributes.ValueInteger:
		return v.Integer
	case attributes.ValueBool:
		return v.Bool
	case attributes.ValueText:
		return v.Text
	case attributes.ValueArray:
		out := make([]any, len(v.Array))
		for i, elem := range v.Array {
			out[i] = valueAsCBOR(elem)
		}
		return out
	default:
		return nil
	}
}
