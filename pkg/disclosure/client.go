package disclosure

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/cryptoutil"
	"github.com/eudiwallet/core/pkg/josekit"
	"github.com/eudiwallet/core/pkg/josekit/jwecrypt"
	"github.com/eudiwallet/core/pkg/mdoc"
	"github.com/eudiwallet/core/pkg/openid4vp"
	"github.com/eudiwallet/core/pkg/sdjwtvc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
)

// URISource is how the wallet reached the request-URI object: a universal link (same device)
// or a scanned QR code (cross device) (§4.2 step 3).
type URISource int

const (
	URISourceLink URISource = iota
	URISourceQrCode
)

// RequestURIObject is the parsed content of the first thing the wallet receives — a universal
// link or QR payload — before anything has been fetched over the network (§4.2 step 1).
type RequestURIObject struct {
	ClientID         string
	RequestURI       string
	RequestURIMethod string // "get" or "post"; empty means GET per RFC 9101 default
}

// ParseRequestURIObject decodes the query parameters a universal link or QR code carries into a
// RequestURIObject. Missing client_id or request_uri ⇒ RequestUri.
func ParseRequestURIObject(query url.Values) (*RequestURIObject, error) {
	clientID := query.Get("client_id")
	requestURI := query.Get("request_uri")
	if clientID == "" || requestURI == "" {
		return nil, apierror.New(apierror.KindRequestURI, "request-uri object is missing client_id or request_uri")
	}
	return &RequestURIObject{
		ClientID:         clientID,
		RequestURI:       requestURI,
		RequestURIMethod: query.Get("request_uri_method"),
	}, nil
}

// VerifierURLParameters is extracted from the request-URI's own query string (§4.2 step 2).
type VerifierURLParameters struct {
	SessionType      SessionType
	EphemeralID      string
	EphemeralIDTime  time.Time
	hasEphemeralID   bool
}

// ExtractVerifierURLParameters parses session_type (and, if present, the ephemeral_id params)
// from the request-URI's query. Missing session_type ⇒ MissingSessionType; an unrecognized
// value, or an ephemeral_id_timestamp that does not parse as an integer, ⇒ MalformedSessionType.
// ephemeral_id is read only when ephemeral_id_timestamp is present; without it, it is ignored.
func ExtractVerifierURLParameters(query url.Values) (*VerifierURLParameters, error) {
	raw := query.Get("session_type")
	if raw == "" {
		return nil, apierror.New(apierror.KindMissingSessionType, "request-uri is missing session_type")
	}

	var sessionType SessionType
	switch raw {
	case "same_device":
		sessionType = SessionTypeSameDevice
	case "cross_device":
		sessionType = SessionTypeCrossDevice
	default:
		return nil, apierror.Newf(apierror.KindMalformedSessionType, "unrecognized session_type %q", raw)
	}

	params := &VerifierURLParameters{SessionType: sessionType}
	if ts := query.Get("ephemeral_id_timestamp"); ts != "" {
		seconds, err := parseUnixSeconds(ts)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindMalformedSessionType, "malformed ephemeral_id_timestamp", err)
		}
		params.EphemeralID = query.Get("ephemeral_id")
		params.EphemeralIDTime = time.Unix(seconds, 0)
		params.hasEphemeralID = true
	}
	return params, nil
}

func parseUnixSeconds(s string) (int64, error) {
	var seconds int64
	_, err := fmt.Sscanf(s, "%d", &seconds)
	return seconds, err
}

// CheckURISource cross-checks the session type against how the wallet actually reached the
// request-URI object: a same-device flow MUST arrive via a universal link, a cross-device flow
// MUST arrive via a scanned QR code (§4.2 step 3).
func CheckURISource(sessionType SessionType, source URISource) error {
	switch {
	case sessionType == SessionTypeSameDevice && source != URISourceLink:
		return apierror.New(apierror.KindDisclosureUriSourceMismatch, "same-device session type reached via a source other than a universal link")
	case sessionType == SessionTypeCrossDevice && source != URISourceQrCode:
		return apierror.New(apierror.KindDisclosureUriSourceMismatch, "cross-device session type reached via a source other than a scanned qr code")
	}
	return nil
}

// GenerateWalletNonce produces the 32-character random nonce a wallet sends in the body of a
// POST request_uri fetch (§4.2 step 4).
func GenerateWalletNonce() (string, error) {
	return cryptoutil.RandomNonceWithLength(32), nil
}

// VerifiedAuthRequest is the Authorization Request's content once every session-start check has
// passed (§4.2 steps 5-8).
type VerifiedAuthRequest struct {
	ClientID           string
	ResponseURI        string
	Nonce              string
	DCQL               *openid4vp.DCQL
	ReaderRegistration *ReaderRegistration
}

// AuthRequestVerificationInput bundles everything VerifyAuthorizationRequest needs beyond the
// raw JWT: the request-URI object's own client_id (to catch a swapped request-URI, step 7), the
// trust anchors the leaf's x5c chain must terminate at, and the wallet_nonce sent on a POST
// fetch, which the Authorization Request MUST echo.
type AuthRequestVerificationInput struct {
	JWT              string
	RequestURIClientID string
	TrustAnchors     *x509.CertPool
	WalletNonce      string // empty if request_uri_method was GET (or absent)
}

// VerifyAuthorizationRequest runs §4.2 steps 5-8: verify the JWT's x5c chain to a trust anchor
// and its leaf's SAN DNS against client_id, extract the ReaderRegistration, verify the
// authenticated client_id matches the request-URI's, and verify the DCQL query is authorized.
func VerifyAuthorizationRequest(input AuthRequestVerificationInput) (*VerifiedAuthRequest, error) {
	var leaf *x509.Certificate

	token, err := jwt.Parse(input.JWT, func(t *jwt.Token) (interface{}, error) {
		chain, err := x5cChain(t.Header)
		if err != nil {
			return nil, err
		}
		if err := verifyChainToTrustAnchors(chain, input.TrustAnchors); err != nil {
			return nil, err
		}
		leaf = chain[0]
		if !containsDNSName(leaf, input.RequestURIClientID) {
			return nil, apierror.New(apierror.KindAuthRequestValidation, "leaf certificate SAN does not name the request-uri's client_id")
		}
		return leaf.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256", "ES384", "ES512", "EdDSA", "RS256"}))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindAuthRequestValidation, "authorization request jwt verification failed", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New(apierror.KindAuthRequestValidation, "authorization request has malformed claims")
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindAuthRequestValidation, "could not re-marshal authorization request claims", err)
	}
	var reqObj openid4vp.RequestObject
	if err := json.Unmarshal(raw, &reqObj); err != nil {
		return nil, apierror.Wrap(apierror.KindAuthRequestValidation, "could not decode authorization request object", err)
	}

	if input.WalletNonce != "" {
		var withWalletNonce struct {
			WalletNonce string `json:"wallet_nonce"`
		}
		_ = json.Unmarshal(raw, &withWalletNonce)
		if withWalletNonce.WalletNonce != input.WalletNonce {
			return nil, apierror.New(apierror.KindAuthRequestValidation, "authorization request does not echo the posted wallet_nonce")
		}
	}

	if reqObj.ClientID != input.RequestURIClientID {
		return nil, apierror.New(apierror.KindIncorrectClientID, "authorization request client_id does not match the request-uri object's client_id")
	}

	registration, err := ExtractReaderRegistration(leaf)
	if err != nil {
		return nil, err
	}
	if registration == nil {
		return nil, apierror.New(apierror.KindMissingReaderRegistration, "verifier leaf certificate carries no reader registration")
	}
	if reqObj.DCQLQuery == nil || !registration.authorizes(reqObj.DCQLQuery) {
		return nil, apierror.New(apierror.KindRequestedAttributesValidation, "requested attributes exceed the verifier's reader registration")
	}

	return &VerifiedAuthRequest{
		ClientID:           reqObj.ClientID,
		ResponseURI:        reqObj.ResponseURI,
		Nonce:              reqObj.Nonce,
		DCQL:               reqObj.DCQLQuery,
		ReaderRegistration: registration,
	}, nil
}

func x5cChain(header map[string]interface{}) ([]*x509.Certificate, error) {
	raw, ok := header["x5c"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, apierror.New(apierror.KindAuthRequestValidation, "authorization request jwt is missing an x5c header")
	}
	chain := make([]*x509.Certificate, 0, len(raw))
	for _, entry := range raw {
		encoded, ok := entry.(string)
		if !ok {
			return nil, apierror.New(apierror.KindAuthRequestValidation, "x5c entry is not a string")
		}
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindAuthRequestValidation, "could not decode x5c certificate", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindAuthRequestValidation, "could not parse x5c certificate", err)
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

func verifyChainToTrustAnchors(chain []*x509.Certificate, roots *x509.CertPool) error {
	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}
	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := chain[0].Verify(opts); err != nil {
		return apierror.Wrap(apierror.KindAuthRequestValidation, "x5c chain does not terminate at a trusted reader ca", err)
	}
	return nil
}

func containsDNSName(cert *x509.Certificate, name string) bool {
	for _, dns := range cert.DNSNames {
		if dns == name {
			return true
		}
	}
	return false
}

// Poster sends a best-effort OAuth error response to the verifier's response_uri. Network
// failures are deliberately swallowed by callers (§4.2 "ignoring network failures
// (best-effort)") — Poster implementations should not retry.
type Poster interface {
	Post(responseURI string, body *openid4vp.ErrorResponse) error
}

// ReportInvalidRequest posts a best-effort OAuth invalid_request error to responseURI, for a
// session-start failure in steps 5-8 (§4.2 "if a response_uri is present, emit an OAuth error
// response with error = invalid_request"). It never returns an error: transport failures here
// must not mask the original validation failure.
func ReportInvalidRequest(poster Poster, responseURI, description string) {
	if poster == nil || responseURI == "" {
		return
	}
	_ = poster.Post(responseURI, openid4vp.NewErrorResponse(openid4vp.ErrorInvalidRequest, description, ""))
}

// DisclosableAttestation is one credential the holder can present for a DCQL credential query:
// either its mdoc IssuerSigned document or its (unsigned) SD-JWT-with-disclosures, plus the
// holder key bound to it.
type DisclosableAttestation struct {
	CredentialQueryID string
	AttestationType    string
	IssuerSignedMdoc   *mdoc.IssuerSigned // set for mso_mdoc
	SdJwtWithDisclosures string           // set for dc+sd-jwt: "<issuer-jwt>~<disclosure>~..."
	HolderKey          any                // *ecdsa.PrivateKey or ed25519.PrivateKey
	Attributes         map[string]any     // flattened claim-path -> value, for the verifiablePresentation payload
}

// Transcript is the session binding every signed presentation and the PoA in one disclose call
// are computed over (§4.2 disclose step 1).
type Transcript struct {
	ResponseURI      string
	ClientID         string
	AuthRequestNonce string
	EncryptionNonce  string
}

func (t Transcript) bytes() []byte {
	return []byte(t.ResponseURI + "|" + t.ClientID + "|" + t.AuthRequestNonce + "|" + t.EncryptionNonce)
}

// NewTranscript derives a fresh encryption nonce and binds it together with the verified
// Authorization Request's response_uri, client_id and nonce (§4.2 disclose step 1).
func NewTranscript(verified *VerifiedAuthRequest) (Transcript, error) {
	encryptionNonce, err := cryptoutil.RandomNonce(16)
	if err != nil {
		return Transcript{}, apierror.Wrap(apierror.KindCrypto, "generating encryption nonce", err)
	}
	return Transcript{
		ResponseURI:      verified.ResponseURI,
		ClientID:         verified.ClientID,
		AuthRequestNonce: verified.Nonce,
		EncryptionNonce:  encryptionNonce,
	}, nil
}

// signOne produces the signed presentation for one attestation, bound to the transcript (§4.2
// disclose step 2): a DeviceResponse for mso_mdoc, a KB-JWT-terminated SD-JWT for dc+sd-jwt.
func signOne(a DisclosableAttestation, transcript Transcript) (string, error) {
	switch {
	case a.IssuerSignedMdoc != nil:
		deviceKeySigner, ok := a.HolderKey.(crypto.Signer)
		if !ok {
			return "", apierror.New(apierror.KindCrypto, "mdoc holder key is not a crypto.Signer")
		}
		response, err := mdoc.NewDeviceResponseBuilder(a.AttestationType).
			WithIssuerSigned(a.IssuerSignedMdoc).
			WithDeviceKey(deviceKeySigner).
			WithSessionTranscript(transcript.bytes()).
			Build()
		if err != nil {
			return "", apierror.Wrap(apierror.KindMdocVerification, "building device response", err)
		}
		encoded, err := mdoc.EncodeDeviceResponse(response)
		if err != nil {
			return "", apierror.Wrap(apierror.KindMdocVerification, "encoding device response", err)
		}
		return base64.RawURLEncoding.EncodeToString(encoded), nil

	case a.SdJwtWithDisclosures != "":
		kb, err := sdjwtvc.CreateKeyBindingJWT(a.SdJwtWithDisclosures, transcript.AuthRequestNonce, transcript.ClientID, a.HolderKey, "sha-256")
		if err != nil {
			return "", apierror.Wrap(apierror.KindSdJwtVerification, "building key binding jwt", err)
		}
		return sdjwtvc.CombineWithKeyBinding(a.SdJwtWithDisclosures, kb), nil

	default:
		return "", apierror.New(apierror.KindCrypto, "disclosable attestation carries neither an mdoc nor an sd-jwt")
	}
}

// DiscloseRequest is what the holder produces and POSTs to response_uri.
type DiscloseRequest struct {
	JWE                 []byte
	TranscriptResponseURI string
	TranscriptClientID    string
	TranscriptAuthNonce   string
}

// Disclose runs §4.2's disclose step end to end: sign every attestation over the transcript,
// build a PoA over the holder keys used, JWE-encrypt the combined VP token payload with the
// verifier's recipient key, and return the POST body for response_uri.
func Disclose(attestations []DisclosableAttestation, transcript Transcript, recipientKey *ecdsa.PublicKey) (*DiscloseRequest, string, error) {
	payload := make(map[string]interface{}, len(attestations))
	holderKeys := make([]any, 0, len(attestations))
	for _, a := range attestations {
		presentation, err := signOne(a, transcript)
		if err != nil {
			return nil, "", err
		}
		thumbprint, err := holderKeyThumbprint(a.HolderKey)
		if err != nil {
			return nil, "", err
		}
		payload[a.CredentialQueryID] = map[string]interface{}{
			"attestation_type":      a.AttestationType,
			"attributes":            a.Attributes,
			"holder_key_thumbprint": thumbprint,
			"presentation":          presentation,
		}
		holderKeys = append(holderKeys, a.HolderKey)
	}

	poa, err := josekit.SignPoA(holderKeys, transcript.ClientID, transcript.AuthRequestNonce)
	if err != nil {
		return nil, "", err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, "", apierror.Wrap(apierror.KindMessageParsing, "marshaling vp token payload", err)
	}
	jwe, err := jwecrypt.Encrypt(plaintext, recipientKey)
	if err != nil {
		return nil, "", err
	}

	return &DiscloseRequest{
		JWE:                   jwe,
		TranscriptResponseURI: transcript.ResponseURI,
		TranscriptClientID:    transcript.ClientID,
		TranscriptAuthNonce:   transcript.AuthRequestNonce,
	}, poa, nil
}

func holderKeyThumbprint(key any) (string, error) {
	parsed, err := jwk.New(publicFromPrivate(key))
	if err != nil {
		return "", apierror.Wrap(apierror.KindCrypto, "parsing holder key as jwk", err)
	}
	return josekit.Thumbprint(parsed)
}

func publicFromPrivate(key any) any {
	if signer, ok := key.(crypto.Signer); ok {
		return signer.Public()
	}
	return key
}
