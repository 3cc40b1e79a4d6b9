// Package credential models the issuable unit shared by the mso_mdoc and sd_jwt formats
// (§4.1): the attribute tree an issuance session has collected, what it looks like before the
// wallet has proven possession of a key (a preview, kept in the issuance session's state; the
// token response does not carry it), and the final format-specific signed artifact.
package credential

import (
	"encoding/json"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/attributes"
	"github.com/eudiwallet/core/pkg/mdocmodel"
	"github.com/eudiwallet/core/pkg/sdjwtvc"
)

// Format names the credential wire format an issuance request asked for.
type Format string

const (
	FormatMsoMdoc Format = "mso_mdoc"
	FormatSdJwt   Format = "vc+sd-jwt"
)

// metadataView is the narrow contract pkg/attributes and pkg/mdocmodel both consume.
type metadataView interface {
	VCT() string
	ClaimKeyPaths() [][]string
}

// PreviewableCredentialPayload is the attribute tree an issuance session has assembled for one
// credential copy, before any wallet key is bound to it. No preview of it is sent to the
// wallet: the issuance TokenResponse has no previews field.
type PreviewableCredentialPayload struct {
	AttestationType string
	Format          Format
	Attributes      *attributes.Attributes
	Metadata        metadataView
}

// Validate checks the attribute tree against its declared type metadata (§4.1 "validate
// attribute tree against type metadata" — shared by both issuance formats before signing).
func (p *PreviewableCredentialPayload) Validate() error {
	return p.Attributes.Validate(p.Metadata)
}

// CredentialPayload is a PreviewableCredentialPayload after a holder key has been bound to it
// and the per-copy proof has been verified: the format-specific signed artifact the issuer
// returns from the credential/batch_credential endpoints.
type CredentialPayload struct {
	Format Format
	// MsoMdoc is set when Format == FormatMsoMdoc: the signed IssuerSigned document.
	MsoMdoc *mdocmodel.SignedDocument
	// SdJwt is set when Format == FormatSdJwt: the combined `<jwt>~<disclosure>~...` string.
	SdJwt string
}

// sdJWTBody flattens an attribute tree into the nested JSON object sdjwtvc.Client.BuildCredential
// expects as its documentData argument: selective disclosure of individual claims is handled
// entirely inside BuildCredential/MakeCredential, so this only needs to produce the plain
// claim structure, not decide per-claim SD policy (§9 "codec errors converted to the error
// taxonomy at the boundary" — json.Marshal failures here are a programmer error, not reachable
// with a validated attribute tree, so they're wrapped as MessageParsing rather than panicking).
func sdJWTBody(tree *attributes.Attributes) ([]byte, error) {
	body := attributesToJSON(tree)
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMessageParsing, "could not serialize attribute tree", err)
	}
	return encoded, nil
}

func attributesToJSON(tree *attributes.Attributes) map[string]any {
	out := make(map[string]any, tree.Len())
	for _, key := range tree.Keys() {
		attr, _ := tree.Get(key)
		switch attr.Kind {
		case attributes.AttributeSingle:
			out[key] = valueToJSON(attr.Single)
		case attributes.AttributeNested:
			out[key] = attributesToJSON(attr.Nested)
		}
	}
	return out
}

func valueToJSON(v attributes.AttributeValue) any {
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
			out[i] = valueToJSON(elem)
		}
		return out
	default:
		return nil
	}
}

// IssueSdJwt builds the sd_jwt-format CredentialPayload: the claims that vctm marks with sd
// "always" become selective disclosures, every other claim stays in the JWT body, and the
// credential is bound to the holder's JWK (§4.1 "sd_jwt issuance path"). vctm is dereferenced
// while the disclosures are built, so a nil vctm is not handled.
func IssueSdJwt(payload *PreviewableCredentialPayload, issuer, kid string, signingKey any, holderJWK any, vctm *sdjwtvc.VCTM, opts *sdjwtvc.CredentialOptions) (*CredentialPayload, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	body, err := sdJWTBody(payload.Attributes)
	if err != nil {
		return nil, err
	}

	client := &sdjwtvc.Client{}
	combined, err := client.BuildCredential(issuer, kid, signingKey, payload.AttestationType, body, holderJWK, vctm, opts)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindSdJwtVerification, "could not build sd-jwt credential", err)
	}

	return &CredentialPayload{Format: FormatSdJwt, SdJwt: combined}, nil
}

// IssueMsoMdoc builds the mso_mdoc-format CredentialPayload (§4.1 "mso_mdoc issuance path"),
// delegating the namespace conversion and MSO signing to pkg/mdocmodel.
func IssueMsoMdoc(payload *PreviewableCredentialPayload, req mdocmodel.SigningRequest) (*CredentialPayload, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	req.NameSpaces = mdocmodel.BuildIssuerNameSpaces(payload.AttestationType, payload.Attributes)
	signed, err := mdocmodel.BuildMSO(req)
	if err != nil {
		return nil, err
	}

	return &CredentialPayload{Format: FormatMsoMdoc, MsoMdoc: signed}, nil
}
