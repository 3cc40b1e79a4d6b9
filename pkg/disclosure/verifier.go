package disclosure

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/cryptoutil"
	"github.com/eudiwallet/core/pkg/josekit"
	"github.com/eudiwallet/core/pkg/josekit/jwecrypt"
	"github.com/eudiwallet/core/pkg/session"
	"github.com/lestrrat-go/jwx/jwk"
)

// StatusResponse is returned by the verifier's status_response call: the request-URI the
// wallet should fetch, carrying a freshly minted ephemeral ID in its query (§4.2
// "status_response(token, session_type, universal_link_base, request_uri_base, time) computes
// an ephemeral ID ... embedded in the request-URI's query").
type StatusResponse struct {
	RequestURI string
	SessionType SessionType
}

// BuildStatusResponse computes this call's ephemeral ID and the request-URI the wallet must
// fetch next. Each call yields a new ephemeral ID, so a replayed universal link (one already
// scanned/tapped) carries a stale ID that Verify rejects.
func BuildStatusResponse(s *Session, secret EphemeralIDSecret, sessionType SessionType, requestURIBase string, now time.Time) StatusResponse {
	id := secret.Compute(s.Token, now)
	return StatusResponse{
		RequestURI:  fmt.Sprintf("%s?ephemeral_id=%s", requestURIBase, id),
		SessionType: sessionType,
	}
}

// RequestURIRequest is what the wallet POSTs (or GETs) to fetch the Authorization Request JWT.
type RequestURIRequest struct {
	EphemeralID string
	WalletNonce string // present only if request_uri_method = POST
}

// AuthorizationRequestJWT is the signed object the verifier returns from the request-URI
// endpoint. Building and signing it is out of scope here (it is ordinary JOSE JWS signing over
// the UseCase's DCQL, client_id, response_uri and nonce claims, plus an x5c header chain to the
// UseCase's certificate) — this package picks the session up again at the point the wallet has
// already verified that JWT and extracted these fields (§4.2 steps 5-8 are the client's
// responsibility, modeled in client.go).
type AuthorizationRequestJWT struct {
	ClientID    string
	ResponseURI string
	Nonce       string
	DCQL        any
}

// HandleRequestURI verifies the ephemeral ID and moves the session Created → WaitingForResponse
// once the wallet has fetched the request (§4.2 "Created → WaitingForResponse (when the wallet
// POSTs the request-URI with a wallet_nonce; cancel/expire allowed)").
func HandleRequestURI(s *Session, secret EphemeralIDSecret, req RequestURIRequest, now time.Time) error {
	if err := secret.Verify(req.EphemeralID, s.Token, now); err != nil {
		return err
	}
	s.Data.WalletNonce = req.WalletNonce
	return s.Advance()
}

// DisclosureResponse is the JWE payload a holder POSTs to response_uri.
type DisclosureResponse struct {
	JWE                 []byte
	TranscriptResponseURI string
	TranscriptClientID    string
	TranscriptAuthNonce   string
}

// verifiablePresentation is the decrypted VP token payload keyed by credential_query_id (§4.2
// "tagged map credential_query_id → VerifiablePresentation").
type verifiablePresentation struct {
	CredentialQueryID   string
	AttestationType     string
	Attributes          map[string]any
	HolderKeyThumbprint string
}

// decodeVerifiablePresentations parses the decrypted JWE plaintext, a JSON object mapping
// credential_query_id to its disclosed attestation (§4.2 step 4 "JWE-encrypt the combined
// payload (tagged map credential_query_id → VerifiablePresentation)").
func decodeVerifiablePresentations(plaintext []byte) ([]verifiablePresentation, error) {
	var raw map[string]struct {
		AttestationType     string         `json:"attestation_type"`
		Attributes          map[string]any `json:"attributes"`
		HolderKeyThumbprint string         `json:"holder_key_thumbprint"`
	}
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return nil, apierror.Wrap(apierror.KindMessageParsing, "could not decode disclosed vp token", err)
	}
	out := make([]verifiablePresentation, 0, len(raw))
	for id, v := range raw {
		out = append(out, verifiablePresentation{
			CredentialQueryID:   id,
			AttestationType:     v.AttestationType,
			Attributes:          v.Attributes,
			HolderKeyThumbprint: v.HolderKeyThumbprint,
		})
	}
	return out, nil
}

// RevocationChecker checks a disclosed attestation against a status list (§4.2 "revocation
// check against status-list"). A deployment wires this to whatever status-list mechanism its
// credential formats use; the zero value (nil) skips the check.
type RevocationChecker interface {
	IsRevoked(attestationType string, holderKeyThumbprint string) (bool, error)
}

// HandleDisclose processes a wallet's JWE-encrypted VP token response (§4.2
// "WaitingForResponse → Done{Done} on successful JWE decrypt + transcript match + PoA verify +
// revocation check against status-list; → Done{Failed(msg)} otherwise").
func HandleDisclose(s *Session, resp DisclosureResponse, recipientKey *ecdsa.PrivateKey, poa string, holderKeys []jwk.Key, revocation RevocationChecker) ([]DisclosedAttestation, error) {
	attestations, err := handleDisclose(s, resp, recipientKey, poa, holderKeys, revocation)
	if err != nil {
		_ = s.Finish(session.DoneFailed, err.Error())
		return nil, err
	}
	if err := s.Finish(session.DoneSuccess, ""); err != nil {
		return nil, err
	}
	return attestations, nil
}

func handleDisclose(s *Session, resp DisclosureResponse, recipientKey *ecdsa.PrivateKey, poa string, holderKeys []jwk.Key, revocation RevocationChecker) ([]DisclosedAttestation, error) {
	if resp.TranscriptResponseURI != s.Data.ResponseURI ||
		resp.TranscriptClientID != s.Data.ClientID ||
		resp.TranscriptAuthNonce != s.Data.AuthRequestNonce {
		return nil, apierror.New(apierror.KindAuthRequestValidation, "disclosure transcript does not match the session's authorization request")
	}

	plaintext, err := jwecrypt.Decrypt(resp.JWE, recipientKey)
	if err != nil {
		return nil, err
	}

	presentations, err := decodeVerifiablePresentations(plaintext)
	if err != nil {
		return nil, err
	}

	if err := josekit.VerifyPoA(poa, holderKeys, s.Data.ClientID, s.Data.AuthRequestNonce); err != nil {
		return nil, err
	}

	out := make([]DisclosedAttestation, 0, len(presentations))
	for _, p := range presentations {
		if revocation != nil {
			revoked, err := revocation.IsRevoked(p.AttestationType, p.HolderKeyThumbprint)
			if err != nil {
				return nil, apierror.Wrap(apierror.KindStorage, "checking revocation status", err)
			}
			if revoked {
				return nil, apierror.Newf(apierror.KindMdocVerification, "attestation %q has been revoked", p.CredentialQueryID)
			}
		}
		out = append(out, DisclosedAttestation{
			CredentialQueryID: p.CredentialQueryID,
			AttestationType:   p.AttestationType,
			Attributes:        p.Attributes,
		})
	}

	s.Data.DisclosedAttestations = out
	if s.Data.SessionType == SessionTypeSameDevice {
		nonce, err := cryptoutil.RandomNonce(16)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindCrypto, "generating return url nonce", err)
		}
		s.Data.ReturnURLNonce = nonce
	}
	return out, nil
}

// DisclosedAttributesStatus is the disclosed_attributes endpoint's session_status field.
type DisclosedAttributesStatus string

const (
	StatusCreated            DisclosedAttributesStatus = "CREATED"
	StatusWaitingForResponse DisclosedAttributesStatus = "WAITING_FOR_RESPONSE"
	StatusFailed             DisclosedAttributesStatus = "FAILED"
	StatusCancelled          DisclosedAttributesStatus = "CANCELLED"
	StatusExpired            DisclosedAttributesStatus = "EXPIRED"
	StatusDoneOK             DisclosedAttributesStatus = "DONE"
)

func statusOf(s *Session) DisclosedAttributesStatus {
	switch s.Status {
	case session.StatusCreated:
		return StatusCreated
	case session.StatusWaitingForResponse:
		return StatusWaitingForResponse
	default:
		switch s.DoneReason {
		case session.DoneSuccess:
			return StatusDoneOK
		case session.DoneCancelled:
			return StatusCancelled
		case session.DoneExpired:
			return StatusExpired
		default:
			return StatusFailed
		}
	}
}

// DisclosedAttributesResult is the disclosed_attributes endpoint's response (§4.2
// "disclosed_attributes(token, nonce?) endpoint").
type DisclosedAttributesResult struct {
	HTTPStatus           int
	SessionStatus        DisclosedAttributesStatus
	SessionError         string
	DisclosedAttestations []DisclosedAttestation
}

// DisclosedAttributes implements the disclosed_attributes endpoint's 400/401/200 contract.
func DisclosedAttributes(s *Session, nonce string) DisclosedAttributesResult {
	status := statusOf(s)
	if status != StatusDoneOK {
		return DisclosedAttributesResult{HTTPStatus: 400, SessionStatus: status, SessionError: s.FailedMsg}
	}
	if s.Data.ReturnURLNonce != "" && s.Data.ReturnURLNonce != nonce {
		return DisclosedAttributesResult{HTTPStatus: 401, SessionStatus: status}
	}
	return DisclosedAttributesResult{HTTPStatus: 200, SessionStatus: status, DisclosedAttestations: s.Data.DisclosedAttestations}
}
