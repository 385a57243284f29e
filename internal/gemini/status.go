package gemini

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// MaxHeaderLen caps the status line, excluding the CRLF terminator.
const MaxHeaderLen = 1024

// Status codes defined by the protocol.
const (
	StatusInput                    = 10
	StatusSensitiveInput           = 11
	StatusSuccess                  = 20
	StatusRedirectTemporary        = 30
	StatusRedirectPermanent        = 31
	StatusTemporaryFailure         = 40
	StatusServerUnavailable        = 41
	StatusCGIError                 = 42
	StatusProxyError               = 43
	StatusSlowDown                 = 44
	StatusPermanentFailure         = 50
	StatusNotFound                 = 51
	StatusGone                     = 52
	StatusProxyRequestRefused      = 53
	StatusBadRequest               = 59
	StatusCertificateRequired      = 60
	StatusCertificateNotAuthorised = 61
	StatusCertificateNotValid      = 62
)

// DefaultMIME applies when a success header carries no meta.
const DefaultMIME = "text/gemini; charset=utf-8"

var (
	errHeaderTooLong = errors.New("status line exceeds 1024 bytes")
	errBadHeader     = errors.New("status line is not <code> <meta>")
)

// Header is a parsed status line.
type Header struct {
	Code int
	Meta string
}

// readHeader reads one CRLF (or bare LF) terminated status line.
func readHeader(r *bufio.Reader) (Header, error) {
	line := make([]byte, 0, 64)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return Header{}, fmt.Errorf("%w: missing line terminator", errBadHeader)
			}
			return Header{}, err
		}
		if b == '\n' {
			break
		}
		line = append(line, b)
		// One extra byte for a trailing '\r'.
		if len(line) > MaxHeaderLen+1 {
			return Header{}, errHeaderTooLong
		}
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(line) > MaxHeaderLen {
		return Header{}, errHeaderTooLong
	}
	return ParseHeader(string(line))
}

// ParseHeader parses "<two digits>[ <meta>]".
func ParseHeader(line string) (Header, error) {
	if len(line) < 2 || !isDigit(line[0]) || !isDigit(line[1]) {
		return Header{}, fmt.Errorf("%w: %q", errBadHeader, truncate(line, 40))
	}
	h := Header{Code: int(line[0]-'0')*10 + int(line[1]-'0')}
	if len(line) == 2 {
		return h, nil
	}
	if line[2] != ' ' {
		return Header{}, fmt.Errorf("%w: %q", errBadHeader, truncate(line, 40))
	}
	h.Meta = line[3:]
	return h, nil
}

// StatusText returns a short description of a status code.
func StatusText(code int) string {
	switch code {
	case StatusInput:
		return "Input required"
	case StatusSensitiveInput:
		return "Sensitive input required"
	case StatusSuccess:
		return "Success"
	case StatusRedirectTemporary:
		return "Temporary redirect"
	case StatusRedirectPermanent:
		return "Permanent redirect"
	case StatusTemporaryFailure:
		return "Temporary failure"
	case StatusServerUnavailable:
		return "Server unavailable"
	case StatusCGIError:
		return "CGI error"
	case StatusProxyError:
		return "Proxy error"
	case StatusSlowDown:
		return "Slow down"
	case StatusPermanentFailure:
		return "Permanent failure"
	case StatusNotFound:
		return "Not found"
	case StatusGone:
		return "Gone"
	case StatusProxyRequestRefused:
		return "Proxy request refused"
	case StatusBadRequest:
		return "Bad request"
	case StatusCertificateRequired:
		return "Client certificate required"
	case StatusCertificateNotAuthorised:
		return "Certificate not authorised"
	case StatusCertificateNotValid:
		return "Certificate not valid"
	}
	switch code / 10 {
	case 1:
		return "Input required"
	case 2:
		return "Success"
	case 3:
		return "Redirect"
	case 4:
		return "Temporary failure"
	case 5:
		return "Permanent failure"
	case 6:
		return "Client certificate required"
	}
	return fmt.Sprintf("Unknown status %d", code)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
