package gemini

import (
	"errors"
	"fmt"
)

// Kind classifies why a navigation failed.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidURI
	KindConnectFailed
	KindCertificateMismatch
	KindCertificateRequired
	KindMalformedResponse
	KindServerError
	KindTransferInterrupted
	KindTooManyRedirects
	KindUnsupportedScheme
)

var kindNames = map[Kind]string{
	KindNone:                "none",
	KindInvalidURI:          "invalid_uri",
	KindConnectFailed:       "connect_failed",
	KindCertificateMismatch: "certificate_mismatch",
	KindCertificateRequired: "certificate_required",
	KindMalformedResponse:   "malformed_response",
	KindServerError:         "server_error",
	KindTransferInterrupted: "transfer_interrupted",
	KindTooManyRedirects:    "too_many_redirects",
	KindUnsupportedScheme:   "unsupported_scheme",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrInvalidURI          = errors.New("invalid URI")
	ErrCertificateMismatch = errors.New("certificate does not match pinned fingerprint")
)

// Failure is a terminal navigation error. Short and Detail are written by
// the client; ServerDetail holds server-supplied text verbatim and is never
// used for control decisions.
type Failure struct {
	Kind         Kind
	Short        string
	Detail       string
	ServerDetail string
	Code         int   // status code for server errors, 0 otherwise
	Err          error // underlying cause, if any
}

func (f *Failure) Error() string {
	s := f.Short
	if f.Detail != "" {
		s += ": " + f.Detail
	}
	if f.ServerDetail != "" {
		s += " (server: " + f.ServerDetail + ")"
	}
	return s
}

func (f *Failure) Unwrap() error { return f.Err }

// Is lets errors.Is match failures against the package sentinels.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrInvalidURI:
		return f.Kind == KindInvalidURI
	case ErrCertificateMismatch:
		return f.Kind == KindCertificateMismatch
	}
	return false
}

// NewFailure builds a Failure with the default short message for kind.
func NewFailure(kind Kind, detail string, err error) *Failure {
	return &Failure{
		Kind:   kind,
		Short:  shortMessage(kind),
		Detail: detail,
		Err:    err,
	}
}

// KindOf extracts the failure kind from err, or KindNone.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindNone
}

func shortMessage(kind Kind) string {
	switch kind {
	case KindInvalidURI:
		return "Invalid address"
	case KindConnectFailed:
		return "Connection failed"
	case KindCertificateMismatch:
		return "Certificate changed"
	case KindCertificateRequired:
		return "Client certificate required"
	case KindMalformedResponse:
		return "Malformed response"
	case KindServerError:
		return "Server error"
	case KindTransferInterrupted:
		return "Transfer interrupted"
	case KindTooManyRedirects:
		return "Too many redirects"
	case KindUnsupportedScheme:
		return "Unsupported scheme"
	}
	return "Error"
}
