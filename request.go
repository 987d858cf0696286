package cacheproxy

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedRequest is returned for anything the parser cannot
	// make sense of: a truncated request line, a header line without
	// a colon, or a request that names no host at all.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrVersionNotSupported is returned for syntactically valid
	// requests using an HTTP version other than 1.0 or 1.1.
	ErrVersionNotSupported = errors.New("http version not supported")
)

// Header is a single header field. Fields keep the order and the exact
// values the client sent, so a rewritten request looks as close to the
// original as possible.
type Header struct {
	Key   string
	Value string
}

// Request is the parsed form of a client request's start line and headers.
// Port is kept as the raw string from the request; empty means the
// scheme default (80).
type Request struct {
	Method  string
	Path    string
	Version string
	Host    string
	Port    string
	Headers []Header
}

// Header returns the first value of the named header, matched
// case-insensitively, or "" if absent.
func (r *Request) Header(key string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value
		}
	}
	return ""
}

// Parse splits a raw request buffer, already terminated by a blank line,
// into its method, target, version and header fields.
//
// Proxy clients normally send the target in absolute form
// (http://host[:port]/path); host and port are then taken from the target
// itself. For an origin-form target the Host header supplies them instead.
func Parse(raw []byte) (*Request, error) {
	lines := strings.Split(string(raw), "\r\n")
	if len(lines) == 0 {
		return nil, ErrMalformedRequest
	}

	parts := strings.Split(lines[0], " ")
	if len(parts) != 3 || parts[0] == "" {
		return nil, ErrMalformedRequest
	}
	req := &Request{
		Method:  parts[0],
		Version: parts[2],
	}
	if req.Version != "HTTP/1.0" && req.Version != "HTTP/1.1" {
		if !strings.HasPrefix(req.Version, "HTTP/") {
			return nil, ErrMalformedRequest
		}
		return nil, ErrVersionNotSupported
	}

	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		colon := strings.Index(line, ":")
		if colon < 1 {
			return nil, ErrMalformedRequest
		}
		req.Headers = append(req.Headers, Header{
			Key:   line[:colon],
			Value: strings.TrimLeft(line[colon+1:], " \t"),
		})
	}

	if err := req.setTarget(parts[1]); err != nil {
		return nil, err
	}
	return req, nil
}

// setTarget fills in Path, Host and Port from the request target,
// falling back to the Host header for origin-form targets.
func (r *Request) setTarget(target string) error {
	if target == "" {
		return ErrMalformedRequest
	}
	if rest, ok := stripScheme(target); ok {
		hostport := rest
		r.Path = "/"
		if slash := strings.IndexByte(rest, '/'); slash != -1 {
			hostport = rest[:slash]
			r.Path = rest[slash:]
		}
		r.Host, r.Port = splitHostPort(hostport)
	} else {
		r.Path = target
		r.Host, r.Port = splitHostPort(r.Header("Host"))
	}
	if r.Host == "" {
		return ErrMalformedRequest
	}
	return nil
}

func stripScheme(target string) (string, bool) {
	if strings.HasPrefix(target, "http://") {
		return target[len("http://"):], true
	}
	return target, false
}

func splitHostPort(hostport string) (host, port string) {
	if colon := strings.LastIndexByte(hostport, ':'); colon != -1 {
		return hostport[:colon], hostport[colon+1:]
	}
	return hostport, ""
}
