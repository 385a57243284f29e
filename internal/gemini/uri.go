// Package gemini implements the Gemini protocol client: address
// normalisation, gemtext parsing, status classification and the TLS
// transfer session with trust-on-first-use certificate pinning.
package gemini

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

const (
	Scheme      = "gemini"
	DefaultPort = "1965"

	// MaxRequestLen is the longest request URI a server must accept.
	MaxRequestLen = 1024
)

// Resolve turns user input into an absolute URI.
//
// An explicit scheme always wins; otherwise the input is resolved against
// base when one is given, and only as a last resort is it taken to be a
// bare host name.
func Resolve(input string, base *url.URL) (*url.URL, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidURI)
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURI, input, err)
	}

	hostPort := looksLikeHostPort(u)
	switch {
	case u.IsAbs() && !hostPort:
		u.Scheme = strings.ToLower(u.Scheme)
	case base != nil && !hostPort:
		u = base.ResolveReference(u)
	default:
		u, err = fromBareHost(input)
		if err != nil {
			return nil, err
		}
	}

	if u.Scheme == Scheme {
		if u.Hostname() == "" {
			return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURI, input)
		}
		if u.Path == "" && u.Opaque == "" {
			u.Path = "/"
		}
		if err := asciiHost(u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// fromBareHost synthesises gemini://host:port/path from input such as
// "example.org" or "example.org:1966/docs".
func fromBareHost(input string) (*url.URL, error) {
	u, err := url.Parse("//" + input)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURI, input, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURI, input)
	}
	u.Scheme = Scheme
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), DefaultPort)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// looksLikeHostPort reports whether url.Parse mistook "host:port[/path]"
// for a scheme followed by an opaque part.
func looksLikeHostPort(u *url.URL) bool {
	if u.Opaque == "" {
		return false
	}
	port, _, _ := strings.Cut(u.Opaque, "/")
	if port == "" {
		return false
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// asciiHost converts an internationalised host name to punycode, which is
// what servers expect in the request line.
func asciiHost(u *url.URL) error {
	host := u.Hostname()
	if host == "" || isASCII(host) {
		return nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return fmt.Errorf("%w: host %q: %v", ErrInvalidURI, host, err)
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(ascii, port)
	} else {
		u.Host = ascii
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// WithQuery returns a copy of u whose query component is the
// percent-encoded text. Spaces become %20, never '+'.
func WithQuery(u *url.URL, text string) *url.URL {
	out := *u
	out.RawQuery = strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	out.ForceQuery = text == ""
	out.Fragment = ""
	out.RawFragment = ""
	return &out
}

// HostPort returns the dial address for u, applying the default port.
func HostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}
