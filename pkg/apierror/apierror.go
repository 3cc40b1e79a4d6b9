// Package apierror defines the core's error taxonomy: a typed Kind carried by every
// subsystem error, and a translator turning that Kind into an RFC 7807 problem detail at
// whatever HTTP boundary a caller wires up (the boundary itself is out of scope).
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/moogar0880/problems"
)

// Kind enumerates the error categories of §7: Protocol, Authn/Authz, Integrity, Shape, Data,
// Infra. Kind is a classification, not a message — callers branch on Kind, never on message
// text.
type Kind string

const (
	// Protocol
	KindUnexpectedState      Kind = "unexpected_state"
	KindUnknownSession       Kind = "unknown_session"
	KindUnsupportedGrantType Kind = "unsupported_grant_type"
	KindMissingNonce         Kind = "missing_nonce"
	KindIncorrectNonce       Kind = "incorrect_nonce"
	KindMissingPoP           Kind = "missing_pop"
	KindMissingWua           Kind = "missing_wua"
	KindMissingPoa           Kind = "missing_poa"
	KindMissingSessionType   Kind = "missing_session_type"

	// Authn/Authz
	KindUnauthorized                    Kind = "unauthorized"
	KindIncorrectClientID               Kind = "incorrect_client_id"
	KindMissingReaderRegistration        Kind = "missing_reader_registration"
	KindRequestedAttributesValidation   Kind = "requested_attributes_validation"
	KindDisclosureUriSourceMismatch      Kind = "disclosure_uri_source_mismatch"

	// Integrity
	KindDpopInvalid            Kind = "dpop_invalid"
	KindPoaVerification        Kind = "poa_verification"
	KindWuaVerification        Kind = "wua_verification"
	KindMdocVerification       Kind = "mdoc_verification"
	KindSdJwtVerification      Kind = "sd_jwt_verification"
	KindIssuerCertificateInvalid Kind = "issuer_certificate_invalid"
	KindAuthRequestValidation  Kind = "auth_request_validation"

	// Shape
	KindMessageParsing      Kind = "message_parsing"
	KindMalformedSessionType Kind = "malformed_session_type"
	KindRequestURI          Kind = "request_uri"
	KindInvalidClaimPath    Kind = "invalid_claim_path"
	KindClaimPathCollision  Kind = "claim_path_collision"
	KindDuplicateLanguages  Kind = "duplicate_languages"
	KindDuplicateSvgIDs     Kind = "duplicate_svg_ids"
	KindMissingSvgIDs       Kind = "missing_svg_ids"

	// Data
	KindCredentialTypeNotOffered   Kind = "credential_type_not_offered"
	KindCredentialTypeMismatch     Kind = "credential_type_mismatch"
	KindUseBatchIssuance           Kind = "use_batch_issuance"
	KindAttributeValueTypeMismatch Kind = "attribute_value_type_mismatch"
	KindUnknownAttribute           Kind = "unknown_attribute"
	KindAttributesWithoutClaim     Kind = "attributes_without_claim"
	KindSomeAttributesNotProcessed Kind = "some_attributes_not_processed"

	// Infra
	KindStorage Kind = "storage"
	KindHTTP    Kind = "http"
	KindCrypto  Kind = "crypto"
	KindHSM     Kind = "hsm"
)

// transitionsSession reports whether an error of this Kind must drive the owning session to
// Done{Failed(msg)} per §7's propagation policy. Infra kinds are excluded: a transient store
// or crypto-backend fault must not poison an otherwise-valid session.
func (k Kind) transitionsSession() bool {
	switch k {
	case KindStorage, KindHTTP, KindCrypto, KindHSM:
		return false
	default:
		return true
	}
}

// TransitionsSession reports whether an error of this Kind must drive the owning session to
// Done{Failed(msg)} per §7's propagation policy.
func (k Kind) TransitionsSession() bool { return k.transitionsSession() }

// httpStatus maps a Kind to the status code the (out-of-scope) HTTP boundary should use.
func (k Kind) httpStatus() int {
	switch k {
	case KindUnauthorized, KindIncorrectClientID, KindMissingReaderRegistration,
		KindRequestedAttributesValidation, KindDisclosureUriSourceMismatch:
		return http.StatusUnauthorized
	case KindUnknownSession:
		return http.StatusNotFound
	case KindStorage, KindHTTP, KindCrypto, KindHSM:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Problem is the error type every subsystem returns. It carries a Kind for classification,
// a human-readable message, and an optional wrapped cause.
type Problem struct {
	Kind    Kind
	Message string
	Cause   error
}

func (p *Problem) Error() string {
	if p.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", p.Kind, p.Message, p.Cause)
	}
	return fmt.Sprintf("%s: %s", p.Kind, p.Message)
}

func (p *Problem) Unwrap() error { return p.Cause }

// New constructs a Problem with no wrapped cause.
func New(kind Kind, message string) *Problem {
	return &Problem{Kind: kind, Message: message}
}

// Newf constructs a Problem with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Problem {
	return &Problem{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a Problem wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Problem {
	return &Problem{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Problem of the given Kind.
func Is(err error, kind Kind) bool {
	var p *Problem
	if errors.As(err, &p) {
		return p.Kind == kind
	}
	return false
}

// TransitionsSession reports whether err (if a *Problem) requires the owning session to
// transition to Done{Failed(msg)}. Non-Problem errors default to true (fail closed).
func TransitionsSession(err error) bool {
	var p *Problem
	if errors.As(err, &p) {
		return p.Kind.TransitionsSession()
	}
	return true
}

// ToProblem translates err into an RFC 7807 problem detail, the way
// pkg/helpers.NewErrorFromError does in the teacher repo, but keyed off Kind instead of
// reflecting on concrete types.
func ToProblem(err error) *problems.Problem {
	var p *Problem
	if errors.As(err, &p) {
		pr := problems.NewDetailedProblem(p.Kind.httpStatus(), p.Message)
		pr.Type = string(p.Kind)
		return pr
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		pr := problems.NewDetailedProblem(http.StatusBadRequest, ve.Error())
		pr.Type = string(KindMessageParsing)
		return pr
	}

	return problems.NewDetailedProblem(http.StatusInternalServerError, "internal error")
}
