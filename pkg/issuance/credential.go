package issuance

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/credential"
	"github.com/eudiwallet/core/pkg/josekit"
	"github.com/eudiwallet/core/pkg/mdoc"
	"github.com/eudiwallet/core/pkg/mdocmodel"
	"github.com/eudiwallet/core/pkg/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
)

// CopyRequest is one requested copy within a credential or batch_credential request: the
// format it must be issued in and the per-copy PoP JWT binding the holder key that will
// receive it (§4.1 "A PoP JWT per requested copy").
type CopyRequest struct {
	Format credential.Format
	Proof  string // CredentialRequestProof::Jwt
}

// CredentialRequest is the inbound payload shared by /credential and /batch_credential, after
// the caller has already separated the single-vs-batch matching concern (ProcessCredential and
// ProcessBatchCredential apply the matching rule before calling the shared core).
type CredentialRequest struct {
	AccessToken   string
	DPoPProof     string
	Copies        []CopyRequest
	WuaDisclosure string // empty if this issuer does not require a WUA
	Poa           string
}

// CredentialResult is one issued credential payload matched back to its requested copy index.
type CredentialResult struct {
	Copy    CopyRequest
	Payload *credential.CredentialPayload
}

// endpointAuth verifies the access token and DPoP binding shared by both endpoints (§4.1
// "Both require: Access token exactly equal ... DPoP proof signed with the SAME key ...").
func endpointAuth(s *Session, req CredentialRequest, endpointURL string) error {
	if req.AccessToken != s.Data.AccessToken {
		return apierror.New(apierror.KindUnauthorized, "access token does not match session")
	}
	dpopKey, err := josekit.VerifyDPoP(req.DPoPProof, "POST", endpointURL, req.AccessToken, s.Data.DPoPNonce)
	if err != nil {
		return err
	}
	thumbprint, err := josekit.Thumbprint(dpopKey)
	if err != nil {
		return apierror.Wrap(apierror.KindCrypto, "computing DPoP key thumbprint", err)
	}
	if thumbprint != s.Data.DPoPPublicKeyThumbprint {
		return apierror.New(apierror.KindUnauthorized, "dpop proof key does not match the key bound at token issuance")
	}
	return nil
}

// popIssuer extracts the unverified `iss` claim from a PoP proof so it can be checked against
// accepted_wallet_client_ids before (and independent of) signature verification.
func popIssuer(proof string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(proof, jwt.MapClaims{})
	if err != nil {
		return "", apierror.Wrap(apierror.KindMissingPoP, "could not parse pop proof claims", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apierror.New(apierror.KindMissingPoP, "pop proof has malformed claims")
	}
	iss, _ := claims["iss"].(string)
	return iss, nil
}

// verifyPerCopyProofs verifies every requested copy's PoP JWT and returns the holder keys in
// request order (§4.1 "iss MUST be in accepted_wallet_client_ids ... aud MUST equal the
// credential_issuer_identifier ... nonce claim MUST equal session c_nonce").
func verifyPerCopyProofs(s *Session, copies []CopyRequest) ([]jwk.Key, error) {
	keys := make([]jwk.Key, 0, len(copies))
	for _, c := range copies {
		iss, err := popIssuer(c.Proof)
		if err != nil {
			return nil, err
		}
		if _, ok := s.Data.AcceptedWalletClientIDs[iss]; !ok {
			return nil, apierror.New(apierror.KindMissingPoP, "pop proof iss is not an accepted wallet client id")
		}
		key, err := josekit.VerifyPoP(c.Proof, s.Data.CredentialIssuerID, s.Data.CNonce)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// processCredentialRequest is the shared core behind ProcessCredential and
// ProcessBatchCredential: it runs all of §4.1's credential-request checks and, on success,
// issues every requested copy, then moves the session to Done{Done}. Any failure moves the
// session to Done{Failed(msg)} (§4.1 "single-use even though OpenID4VCI permits reuse").
func processCredentialRequest(s *Session, req CredentialRequest, endpointURL string, wuaTrustRoot jwk.Key) ([]CredentialResult, error) {
	if s.Status == session.StatusDone {
		return nil, apierror.New(apierror.KindUnexpectedState, "session is already done")
	}
	results, err := issueCopies(s, req, endpointURL, wuaTrustRoot)
	if err != nil {
		_ = s.Finish(session.DoneFailed, err.Error())
		return nil, err
	}
	if err := s.Finish(session.DoneSuccess, ""); err != nil {
		return nil, err
	}
	return results, nil
}

func issueCopies(s *Session, req CredentialRequest, endpointURL string, wuaTrustRoot jwk.Key) ([]CredentialResult, error) {
	if err := endpointAuth(s, req, endpointURL); err != nil {
		return nil, err
	}

	holderKeys, err := verifyPerCopyProofs(s, req.Copies)
	if err != nil {
		return nil, err
	}

	poaKeys := append([]jwk.Key{}, holderKeys...)
	if s.Data.WuaIssuerKeyThumbprint != "" {
		if req.WuaDisclosure == "" {
			return nil, apierror.New(apierror.KindMissingWua, "issuer requires a wallet unit attestation disclosure")
		}
		wuaKey, err := josekit.VerifyWUA(req.WuaDisclosure, wuaTrustRoot, s.Data.CredentialIssuerID)
		if err != nil {
			return nil, err
		}
		poaKeys = append(poaKeys, wuaKey)
	}

	if req.Poa == "" {
		return nil, apierror.New(apierror.KindMissingPoa, "a proof of association over all requested keys is required")
	}
	if err := josekit.VerifyPoA(req.Poa, poaKeys, s.Data.CredentialIssuerID, s.Data.CNonce); err != nil {
		return nil, err
	}

	results := make([]CredentialResult, 0, len(req.Copies))
	for i, copy := range req.Copies {
		preview, err := matchPreview(s.Data.CredentialPreviews, copy.Format)
		if err != nil {
			return nil, err
		}
		payload, err := issueOne(preview, copy.Format, holderKeys[i], s.Data)
		if err != nil {
			return nil, err
		}
		results = append(results, CredentialResult{Copy: copy, Payload: payload})
	}
	return results, nil
}

// matchPreview finds the single preview offering format, per the single-credential matching
// rule (§4.1 "select those whose copies_per_format contains the requested format").
func matchPreview(previews []CredentialPreview, format credential.Format) (*CredentialPreview, error) {
	var matches []*CredentialPreview
	for i := range previews {
		if _, ok := previews[i].CopiesPerFormat[string(format)]; ok {
			matches = append(matches, &previews[i])
		}
	}
	switch len(matches) {
	case 0:
		return nil, apierror.Newf(apierror.KindCredentialTypeNotOffered, "format %q was not offered", format)
	case 1:
		return matches[0], nil
	default:
		return nil, apierror.New(apierror.KindUseBatchIssuance, "multiple previews offer this format, use batch_credential")
	}
}

// issueOne builds one credential payload for the given preview, format and holder key.
func issueOne(preview *CredentialPreview, format credential.Format, holderKey jwk.Key, data Data) (*credential.CredentialPayload, error) {
	previewable := &credential.PreviewableCredentialPayload{
		AttestationType: preview.AttestationType,
		Format:          format,
		Attributes:      preview.Attributes,
		Metadata:        preview.Config.Metadata,
	}

	switch format {
	case credential.FormatMsoMdoc:
		deviceKey, err := holderJWKToCOSEKey(holderKey)
		if err != nil {
			return nil, err
		}
		signerKey, ok := preview.Config.IssuerKey.(crypto.Signer)
		if !ok {
			return nil, apierror.New(apierror.KindMdocVerification, "attestation type's issuer key is not usable for mso_mdoc signing")
		}
		certChain := make([]*x509.Certificate, 0, len(preview.Config.IssuerCertChain))
		for _, c := range preview.Config.IssuerCertChain {
			if cert, ok := c.(*x509.Certificate); ok {
				certChain = append(certChain, cert)
			}
		}
		signed, err := credential.IssueMsoMdoc(previewable, mdocmodel.SigningRequest{
			DocType:    preview.AttestationType,
			ValidFrom:  data.NotBefore,
			ValidUntil: data.Expires,
			DeviceKey:  deviceKey,
			SignerKey:  signerKey,
			CertChain:  certChain,
		})
		if err != nil {
			return nil, err
		}
		// Round-trip: parse the just-signed namespaces back and re-validate (§4.1 "defense in
		// depth against encoding drift").
		rebuilt, err := mdocmodel.ParseIssuerNameSpaces(preview.Config.Metadata, mdocmodel.BuildIssuerNameSpaces(preview.AttestationType, preview.Attributes))
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMdocVerification, "round-trip parse of issuer namespaces failed", err)
		}
		if err := rebuilt.Validate(preview.Config.Metadata); err != nil {
			return nil, apierror.Wrap(apierror.KindMdocVerification, "round-trip attribute validation failed", err)
		}
		return signed, nil

	case credential.FormatSdJwt:
		return credential.IssueSdJwt(previewable, preview.Config.IssuerURI, "", preview.Config.IssuerKey, holderKey, nil, nil)

	default:
		return nil, apierror.Newf(apierror.KindCredentialTypeNotOffered, "unsupported format %q", format)
	}
}

// holderJWKToCOSEKey converts a holder's public JWK (extracted from a verified PoP proof) into
// the COSE_Key representation pkg/mdoc's MSO builder commits to as the mdoc device key.
func holderJWKToCOSEKey(key jwk.Key) (*mdoc.COSEKey, error) {
	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, apierror.Wrap(apierror.KindCrypto, "extracting raw holder public key", err)
	}
	switch pub := raw.(type) {
	case *ecdsa.PublicKey:
		coseKey, err := mdoc.NewCOSEKeyFromECDSA(pub)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindCrypto, "converting holder key to COSE_Key", err)
		}
		return coseKey, nil
	case ed25519.PublicKey:
		return mdoc.NewCOSEKeyFromEd25519(pub), nil
	default:
		return nil, apierror.New(apierror.KindCrypto, "holder public key is not a supported COSE key type")
	}
}
