// Package issuance implements the OpenID4VCI issuance session engine (§4.1): a session moves
// Created → WaitingForResponse → Done{...}, gated at each transition by DPoP, PoP, WUA and PoA
// verification performed via pkg/josekit, and finishes by handing off to pkg/credential for the
// actual mso_mdoc/sd_jwt construction.
package issuance

import (
	"time"

	"github.com/eudiwallet/core/pkg/attributes"
	"github.com/eudiwallet/core/pkg/session"
	"github.com/eudiwallet/core/pkg/typemetadata"
)

// DefaultSessionTTL bounds how long an issuance session may sit in Created or
// WaitingForResponse before the background cleaner marks it Done{Expired}.
const DefaultSessionTTL = 5 * time.Minute

// IssuableDocument is one credential the session may issue: an attestation type plus the
// attribute tree carrying its claim values (§4.1 "Created carries an optional
// issuable_documents").
type IssuableDocument struct {
	AttestationType string
	Attributes      *attributes.Attributes
}

// AttributeService maps a TokenRequest to the IssuableDocuments it authorizes, used when a
// session has no documents attached at creation time (§4.1 "an externally-injected
// AttributeService can replace this source").
type AttributeService interface {
	Attributes(req TokenRequest) ([]IssuableDocument, error)
}

// AttestationTypeConfig is the static per-attestation-type configuration an issuer looks up
// during token processing (§4.1 step 3).
type AttestationTypeConfig struct {
	AttestationType   string
	IssuerKey         any
	IssuerCertChain   []any // *x509.Certificate, kept loosely typed so mdoc- and sd-jwt-only deployments don't have to populate both chains
	ValidDays         int
	CopiesPerFormat   map[string]int // format -> copy count
	IssuerURI         string
	Qualification     string
	Metadata          *typemetadata.NormalizedTypeMetadata
	MetadataDocuments []typemetadata.UncheckedTypeMetadata
	IntegrityDigest   string
}

// TypeRegistry resolves an attestation_type to its AttestationTypeConfig. Unknown types must
// return ok=false, which token processing turns into CredentialTypeNotOffered.
type TypeRegistry interface {
	Lookup(attestationType string) (AttestationTypeConfig, bool)
}

// CredentialPreview is what WaitingForResponse remembers about one offered document: enough
// to match later credential/batch_credential requests without re-deriving it (§4.1
// "credential_previews (copy-counts per format and per-attestation-type)").
type CredentialPreview struct {
	AttestationType string
	Config          AttestationTypeConfig
	Attributes      *attributes.Attributes
	CopiesPerFormat map[string]int
}

// Data is the payload an issuance session.State carries through its lifetime.
type Data struct {
	// Created-phase input.
	IssuableDocuments []IssuableDocument

	// Set by token processing, read by credential processing.
	AccessToken             string
	CNonce                  string
	DPoPNonce               string
	DPoPPublicKeyThumbprint string
	AcceptedWalletClientIDs map[string]struct{}
	CredentialPreviews      []CredentialPreview
	NotBefore               time.Time
	Expires                 time.Time
	CredentialIssuerID      string
	WuaIssuerKeyThumbprint  string // empty if no WUA is configured for this issuer
}

// Session is an issuance session.State specialised over Data.
type Session = session.State[Data]

// NewSession creates a freshly Created issuance session, optionally pre-loaded with
// IssuableDocuments (§4.1 "Created carries an optional issuable_documents").
func NewSession(documents []IssuableDocument) *Session {
	return session.NewState(Data{IssuableDocuments: documents}, DefaultSessionTTL)
}
