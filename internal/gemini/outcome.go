package gemini

import (
	"fmt"
	"net/url"
	"strings"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRedirect
	OutcomeInput
	OutcomeFailure
	OutcomeCertificateIssue
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeInput:
		return "input"
	case OutcomeFailure:
		return "failure"
	case OutcomeCertificateIssue:
		return "certificate_issue"
	}
	return "unknown"
}

// CertReason explains a CertificateIssue outcome.
type CertReason string

const CertMismatch CertReason = "mismatch"

// Outcome is the single classified result of a transfer session. Only the
// fields belonging to Kind are meaningful.
type Outcome struct {
	Kind OutcomeKind
	URL  *url.URL // the request URI

	// Success
	MIME string
	Body []byte

	// Redirect
	Target    *url.URL
	Permanent bool

	// Input
	Prompt    string
	Sensitive bool

	// Failure; also set for CertificateIssue so callers can report it
	// uniformly.
	Failure *Failure

	// CertificateIssue
	Reason CertReason
}

// Err returns the outcome's failure, or nil for non-failure kinds.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

func failed(u *url.URL, f *Failure) Outcome {
	return Outcome{Kind: OutcomeFailure, URL: u, Failure: f}
}

func certificateIssue(u *url.URL, fingerprint, pinned string) Outcome {
	f := NewFailure(KindCertificateMismatch,
		fmt.Sprintf("The certificate presented by %s (%s) does not match the one pinned on first visit (%s). "+
			"Forget the host to trust the new certificate.", u.Hostname(), shortFingerprint(fingerprint), shortFingerprint(pinned)),
		ErrCertificateMismatch)
	return Outcome{Kind: OutcomeCertificateIssue, URL: u, Reason: CertMismatch, Failure: f}
}

// classify maps a non-success header to its outcome. Success headers are
// handled by the session because they need the body.
func classify(u *url.URL, h Header) Outcome {
	switch h.Code / 10 {
	case 1:
		return Outcome{
			Kind:      OutcomeInput,
			URL:       u,
			Prompt:    h.Meta,
			Sensitive: h.Code == StatusSensitiveInput,
		}

	case 3:
		meta := strings.TrimSpace(h.Meta)
		if meta == "" {
			return failed(u, NewFailure(KindMalformedResponse, "The server sent a redirect without a target.", nil))
		}
		target, err := Resolve(meta, u)
		if err != nil {
			f := NewFailure(KindMalformedResponse, "The server redirected to an invalid address.", err)
			f.ServerDetail = h.Meta
			return failed(u, f)
		}
		return Outcome{
			Kind:      OutcomeRedirect,
			URL:       u,
			Target:    target,
			Permanent: h.Code == StatusRedirectPermanent,
		}

	case 4, 5:
		return failed(u, &Failure{
			Kind:         KindServerError,
			Short:        StatusText(h.Code),
			Detail:       fmt.Sprintf("The server answered %s with status %d.", u.Redacted(), h.Code),
			ServerDetail: h.Meta,
			Code:         h.Code,
		})

	case 6:
		f := NewFailure(KindCertificateRequired,
			"This page requires a client certificate, which is not supported.", nil)
		f.Short = StatusText(h.Code)
		f.ServerDetail = h.Meta
		f.Code = h.Code
		return failed(u, f)
	}

	return failed(u, NewFailure(KindMalformedResponse, fmt.Sprintf("Unknown status code %d.", h.Code), nil))
}

func shortFingerprint(fp string) string {
	if len(fp) > 16 {
		return fp[:16] + "…"
	}
	return fp
}
