package issuance

import (
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/cryptoutil"
	"github.com/eudiwallet/core/pkg/josekit"
	"github.com/eudiwallet/core/pkg/session"
)

// GrantTypePreAuthorizedCode is the only grant type this issuer accepts (§4.1 "grant_type MUST
// be urn:ietf:params:oauth:grant-type:pre-authorized_code").
const GrantTypePreAuthorizedCode = "urn:ietf:params:oauth:grant-type:pre-authorized_code"

// TokenRequest is the inbound /token request (cf. teacher pkg/openid4vci.TokenRequest, which
// carries the grant fields this type narrows to the single supported grant).
type TokenRequest struct {
	GrantType         string
	PreAuthorizedCode string
	DPoPProof         string
}

// TokenRequestOptions carries the issuer-side configuration needed to process a TokenRequest
// that doesn't travel on the wire itself.
type TokenRequestOptions struct {
	TokenEndpointURL        string
	AttributeService        AttributeService
	TypeRegistry            TypeRegistry
	CredentialIssuerID      string
	AcceptedWalletClientIDs []string
	WuaIssuerKeyThumbprint  string // empty if no WUA is required by this issuer
}

// TokenResponse is what a successful token request returns to the wallet.
type TokenResponse struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
	CNonce      string
	DPoPNonce   string
}

// ProcessTokenRequest drives Created → WaitingForResponse (§4.1 "Token request processing").
// On any error the session is finished as Done{Failed(msg)} and the zero TokenResponse is
// returned alongside the error (§4.1 "On any error, transition to Done{Failed(error)}").
func ProcessTokenRequest(s *Session, req TokenRequest, opts TokenRequestOptions) (TokenResponse, error) {
	resp, err := processTokenRequest(s, req, opts)
	if err != nil {
		_ = s.Finish(session.DoneFailed, err.Error())
		return TokenResponse{}, err
	}
	return resp, nil
}

func processTokenRequest(s *Session, req TokenRequest, opts TokenRequestOptions) (TokenResponse, error) {
	if req.GrantType != GrantTypePreAuthorizedCode {
		return TokenResponse{}, apierror.New(apierror.KindUnsupportedGrantType, "only the pre-authorized_code grant is supported")
	}

	// Step 1: verify DPoP, no access token and no nonce yet bound at this point in the flow.
	dpopKey, err := josekit.VerifyDPoP(req.DPoPProof, "POST", opts.TokenEndpointURL, "", "")
	if err != nil {
		return TokenResponse{}, err
	}
	dpopThumbprint, err := josekit.Thumbprint(dpopKey)
	if err != nil {
		return TokenResponse{}, apierror.Wrap(apierror.KindCrypto, "computing DPoP key thumbprint", err)
	}

	// Step 2: acquire the documents to issue.
	documents := s.Data.IssuableDocuments
	if len(documents) == 0 {
		if opts.AttributeService == nil {
			return TokenResponse{}, apierror.New(apierror.KindCredentialTypeNotOffered, "no issuable documents and no attribute service configured")
		}
		documents, err = opts.AttributeService.Attributes(req)
		if err != nil {
			return TokenResponse{}, err
		}
	}
	if len(documents) == 0 {
		return TokenResponse{}, apierror.New(apierror.KindCredentialTypeNotOffered, "no issuable documents")
	}

	// Steps 3-4: resolve each document's config and validate its attribute tree.
	previews := make([]CredentialPreview, 0, len(documents))
	for _, doc := range documents {
		cfg, ok := opts.TypeRegistry.Lookup(doc.AttestationType)
		if !ok {
			return TokenResponse{}, apierror.Newf(apierror.KindCredentialTypeNotOffered, "attestation type %q is not offered", doc.AttestationType)
		}
		if err := doc.Attributes.Validate(cfg.Metadata); err != nil {
			return TokenResponse{}, err
		}
		previews = append(previews, CredentialPreview{
			AttestationType: doc.AttestationType,
			Config:          cfg,
			Attributes:      doc.Attributes,
			CopiesPerFormat: cfg.CopiesPerFormat,
		})
	}

	// Step 5: truncate to the day boundary so all copies issued today share iat/exp.
	now := time.Now().UTC()
	notBefore := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	validDays := previews[0].Config.ValidDays
	expires := notBefore.AddDate(0, 0, validDays)

	// Step 6: fresh c_nonce and dpop_nonce.
	cNonce, err := cryptoutil.RandomNonce(32)
	if err != nil {
		return TokenResponse{}, apierror.Wrap(apierror.KindCrypto, "generating c_nonce", err)
	}
	dpopNonce, err := cryptoutil.RandomNonce(32)
	if err != nil {
		return TokenResponse{}, apierror.Wrap(apierror.KindCrypto, "generating dpop_nonce", err)
	}
	accessToken, err := cryptoutil.RandomNonce(32)
	if err != nil {
		return TokenResponse{}, apierror.Wrap(apierror.KindCrypto, "generating access_token", err)
	}

	accepted := make(map[string]struct{}, len(opts.AcceptedWalletClientIDs))
	for _, id := range opts.AcceptedWalletClientIDs {
		accepted[id] = struct{}{}
	}

	s.Data.AccessToken = accessToken
	s.Data.CNonce = cNonce
	s.Data.DPoPNonce = dpopNonce
	s.Data.DPoPPublicKeyThumbprint = dpopThumbprint
	s.Data.AcceptedWalletClientIDs = accepted
	s.Data.CredentialPreviews = previews
	s.Data.NotBefore = notBefore
	s.Data.Expires = expires
	s.Data.CredentialIssuerID = opts.CredentialIssuerID
	s.Data.WuaIssuerKeyThumbprint = opts.WuaIssuerKeyThumbprint

	if err := s.Advance(); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken: accessToken,
		TokenType:   "DPoP",
		ExpiresIn:   int(expires.Sub(now).Seconds()),
		CNonce:      cNonce,
		DPoPNonce:   dpopNonce,
	}, nil
}
