package issuance

import (
	"sort"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/credential"
	"github.com/eudiwallet/core/pkg/session"
	"github.com/lestrrat-go/jwx/jwk"
)

// ProcessCredential drives the single /credential endpoint (§4.1 "Single-credential matching
// rule"): each requested copy is matched on its own, and its format must be offered by exactly
// one preview. A failed match for any copy finishes the session as Done{Failed}.
func ProcessCredential(s *Session, req CredentialRequest, endpointURL string, wuaTrustRoot jwk.Key) ([]CredentialResult, error) {
	for _, c := range req.Copies {
		if _, err := matchPreview(s.Data.CredentialPreviews, c.Format); err != nil {
			_ = s.Finish(session.DoneFailed, err.Error())
			return nil, err
		}
	}
	return processCredentialRequest(s, req, endpointURL, wuaTrustRoot)
}

// flattenedCopy names one copy slot in the flattened copies_per_format view of the session's
// previews: each preview, in session order, contributes `count` copies of each format it
// offers, formats taken in ascending name order (§4.1 "Batch-credential matching rule").
type flattenedCopy struct {
	Preview *CredentialPreview
	Format  credential.Format
}

func flattenCopies(previews []CredentialPreview) []flattenedCopy {
	var flat []flattenedCopy
	for i := range previews {
		formats := make([]string, 0, len(previews[i].CopiesPerFormat))
		for format := range previews[i].CopiesPerFormat {
			formats = append(formats, format)
		}
		sort.Strings(formats)
		for _, format := range formats {
			for j := 0; j < previews[i].CopiesPerFormat[format]; j++ {
				flat = append(flat, flattenedCopy{Preview: &previews[i], Format: credential.Format(format)})
			}
		}
	}
	return flat
}

// ProcessBatchCredential drives the /batch_credential endpoint (§4.1 "Batch-credential matching
// rule"): the incoming requests are zipped in order against the flattened copies_per_format
// view; a mismatched format at any position is a CredentialTypeMismatch.
func ProcessBatchCredential(s *Session, req CredentialRequest, endpointURL string, wuaTrustRoot jwk.Key) ([]CredentialResult, error) {
	flat := flattenCopies(s.Data.CredentialPreviews)
	if len(req.Copies) != len(flat) {
		err := apierror.New(apierror.KindCredentialTypeMismatch, "batch request size does not match the offered copies")
		_ = s.Finish(session.DoneFailed, err.Error())
		return nil, err
	}
	for i, c := range req.Copies {
		if c.Format != flat[i].Format {
			err := apierror.Newf(apierror.KindCredentialTypeMismatch, "batch position %d requested format %q, expected %q", i, c.Format, flat[i].Format)
			_ = s.Finish(session.DoneFailed, err.Error())
			return nil, err
		}
	}
	return processCredentialRequest(s, req, endpointURL, wuaTrustRoot)
}

// RejectionRequest is the DELETE body on a credential endpoint that cancels the session
// outright (§4.1 "Rejection (WaitingForResponse → Done{Cancelled})").
type RejectionRequest struct {
	AccessToken string
	DPoPProof   string
}

// ProcessRejection verifies the access token and DPoP binding, then transitions the session to
// Done{Cancelled}.
func ProcessRejection(s *Session, req RejectionRequest, endpointURL string) error {
	auth := CredentialRequest{AccessToken: req.AccessToken, DPoPProof: req.DPoPProof}
	if err := endpointAuth(s, auth, endpointURL); err != nil {
		return err
	}
	return s.Finish(session.DoneCancelled, "")
}
