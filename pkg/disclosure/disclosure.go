// Package disclosure implements the OpenID4VP disclosure session engine (§4.2): the verifier
// side drives a wallet through a request-URI-initiated presentation, the client (holder) side
// validates that request and produces a JWE-encrypted VP token response. Both sides share the
// session state machine in pkg/session and the crypto primitives in pkg/josekit; the DCQL query
// shape is reused unchanged from pkg/openid4vp, which already implements it against the OpenID4VP
// spec text.
package disclosure

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/eudiwallet/core/pkg/openid4vp"
	"github.com/eudiwallet/core/pkg/session"
)

// DefaultSessionTTL bounds how long a disclosure session may sit in Created or
// WaitingForResponse before the background cleaner marks it Done{Expired}.
const DefaultSessionTTL = 5 * time.Minute

// SessionType distinguishes a same-device flow (wallet and verifier share a browser context,
// request-URI reached via a universal Link) from a cross-device flow (request-URI reached by
// scanning a QrCode) (§4.2 step 2).
type SessionType int

const (
	SessionTypeSameDevice SessionType = iota
	SessionTypeCrossDevice
)

// ReturnURLPolicy governs whether a UseCase's status_response includes a same-device return
// URL (§4.2 "UseCase ... return-url policy").
type ReturnURLPolicy int

const (
	ReturnURLNeither ReturnURLPolicy = iota
	ReturnURLSameDevice
	ReturnURLCrossDevice
	ReturnURLBoth
)

func (p ReturnURLPolicy) allows(sessionType SessionType) bool {
	switch p {
	case ReturnURLBoth:
		return true
	case ReturnURLSameDevice:
		return sessionType == SessionTypeSameDevice
	case ReturnURLCrossDevice:
		return sessionType == SessionTypeCrossDevice
	default:
		return false
	}
}

// UseCase is the verifier-side configuration a disclosure session is created against (§4.2
// "Verifier (server) side ... Holds a map of UseCase definitions").
type UseCase struct {
	Name              string
	CertificateKey    any // crypto.Signer for the leaf certificate the Authorization Request JWT is signed with
	CertificateChain  []any
	ReturnURLPolicy   ReturnURLPolicy `default:"0"`
	DCQL              *openid4vp.DCQL
	ReturnURLTemplate string
	WalletInitiated   bool
	SessionTTL        time.Duration `default:"5m" yaml:"session_ttl"`
}

// NewUseCase applies field defaults (§10.3: `creasty/defaults` the way `pkg/configuration.New`
// applies them to `model.Cfg`) to a UseCase loaded from partial configuration, then checks that
// Name is set. No other field is validated.
func NewUseCase(uc UseCase) (UseCase, error) {
	if err := defaults.Set(&uc); err != nil {
		return UseCase{}, fmt.Errorf("applying usecase defaults: %w", err)
	}
	if uc.Name == "" {
		return UseCase{}, fmt.Errorf("usecase name is required")
	}
	return uc, nil
}

// DisclosedAttestation is one credential a wallet disclosed, with the attribute subset the
// verifier is entitled to see per the DCQL query (§4.2 "disclosed_attributes endpoint ...
// returning the disclosed attestations").
type DisclosedAttestation struct {
	CredentialQueryID string
	AttestationType   string
	Attributes        map[string]any // flattened claim-path -> value, already filtered to the requested claims
}

// Data is the payload a disclosure session.State carries through its lifetime.
type Data struct {
	UseCase UseCase

	// Set by status_response / session-start.
	SessionType     SessionType
	WalletNonce     string
	AuthRequestNonce string
	ClientID        string
	ResponseURI     string

	// Set by the disclose step.
	DisclosedAttestations []DisclosedAttestation
	ReturnURLNonce        string // empty if no same-device return URL was minted
}

// Session is a disclosure session.State specialised over Data.
type Session = session.State[Data]

// NewSession creates a freshly Created disclosure session for the given UseCase (§4.2
// "new_session(usecase, dcql?, return_url_template?)").
func NewSession(usecase UseCase) *Session {
	ttl := usecase.SessionTTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return session.NewState(Data{UseCase: usecase}, ttl)
}
