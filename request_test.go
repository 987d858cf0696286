package cacheproxy

import (
	"testing"
)

func TestParseAbsoluteTarget(t *testing.T) {
	raw := []byte("GET http://example.com:8080/some/path?q=1 HTTP/1.1\r\nUser-Agent: test\r\n\r\n")
	req, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != "GET" {
		t.Errorf("method is %s", req.Method)
	}
	if req.Path != "/some/path?q=1" {
		t.Errorf("path is %s", req.Path)
	}
	if req.Host != "example.com" {
		t.Errorf("host is %s", req.Host)
	}
	if req.Port != "8080" {
		t.Errorf("port is %s", req.Port)
	}
	if req.Version != "HTTP/1.1" {
		t.Errorf("version is %s", req.Version)
	}
}

func TestParseAbsoluteTargetWithoutPath(t *testing.T) {
	req, err := Parse([]byte("GET http://example.com HTTP/1.0\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.Path != "/" {
		t.Errorf("path is %s", req.Path)
	}
	if req.Host != "example.com" {
		t.Errorf("host is %s", req.Host)
	}
	if req.Port != "" {
		t.Errorf("port is %s", req.Port)
	}
}

func TestParseOriginTargetUsesHostHeader(t *testing.T) {
	req, err := Parse([]byte("GET /index.html HTTP/1.1\r\nHost: origin.test:9999\r\nAccept: */*\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.Host != "origin.test" {
		t.Errorf("host is %s", req.Host)
	}
	if req.Port != "9999" {
		t.Errorf("port is %s", req.Port)
	}
	if req.Path != "/index.html" {
		t.Errorf("path is %s", req.Path)
	}
}

func TestParsePreservesHeaderOrderAndValues(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nHost: x\r\nB-Header: second\r\nA-Header: first\r\nB-Header: again\r\n\r\n")
	req, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := []Header{
		{"Host", "x"},
		{"B-Header", "second"},
		{"A-Header", "first"},
		{"B-Header", "again"},
	}
	if len(req.Headers) != len(want) {
		t.Fatalf("got %d headers", len(req.Headers))
	}
	for i, h := range want {
		if req.Headers[i] != h {
			t.Errorf("header %d is %v, want %v", i, req.Headers[i], h)
		}
	}
}

func TestParseHeaderLookupIsCaseInsensitive(t *testing.T) {
	req, err := Parse([]byte("GET / HTTP/1.1\r\nhOsT: example.com\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.Host != "example.com" {
		t.Errorf("host is %s", req.Host)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"NOT_HTTP\r\n\r\n",
		"\r\n\r\n",
		"GET\r\n\r\n",
		"GET /\r\n\r\n",
		"GET / HTTP/1.1 EXTRA\r\n\r\n",
		"GET / HTTP/1.1\r\nno-colon-here\r\n\r\n",
		"GET / HTTP/1.1\r\n\r\n", // no host anywhere
		"GET / FTP/1.1\r\nHost: x\r\n\r\n",
	} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("no error for %q", raw)
		}
	}
}

func TestParseUnsupportedVersion(t *testing.T) {
	_, err := Parse([]byte("GET / HTTP/2.0\r\nHost: x\r\n\r\n"))
	if err != ErrVersionNotSupported {
		t.Errorf("error is %v", err)
	}
}

func TestParseKeepsNonNumericPort(t *testing.T) {
	// a bogus port is not a parse error; the dial fails later instead
	req, err := Parse([]byte("GET / HTTP/1.1\r\nHost: example.com:notaport\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.Port != "notaport" {
		t.Errorf("port is %s", req.Port)
	}
}
