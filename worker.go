package cacheproxy

import (
	"bytes"
	"errors"
	"net"
)

var headerTerminator = []byte("\r\n\r\n")

var (
	errClientClosed   = errors.New("client closed without sending anything")
	errTruncatedRead  = errors.New("client closed mid-headers")
	errHeaderTooLarge = errors.New("header buffer limit reached")
)

// handle serves one client connection: receive the request headers,
// answer from the cache if possible, otherwise parse and relay.
// It owns conn exclusively and closes it on return. The admission slot
// acquired here is released on every exit path.
func (p *Proxy) handle(conn net.Conn) {
	p.gate <- struct{}{}
	defer func() { <-p.gate }()
	defer conn.Close()

	raw, err := p.receiveHeaders(conn)
	if err == errClientClosed {
		return
	}
	if err != nil {
		p.respondError(conn, 400)
		return
	}

	key := string(raw)
	if value, ok := p.cache.Get(key); ok {
		conn.Write(value)
		p.logRequest(conn, requestLine(raw), true)
		return
	}

	req, err := Parse(raw)
	switch {
	case err == ErrVersionNotSupported:
		p.respondError(conn, 505)
		return
	case err != nil:
		p.respondError(conn, 400)
		return
	case req.Method != "GET":
		p.respondError(conn, 501)
		return
	}

	if err := p.relay(conn, req, key); err != nil {
		p.log.Debug().Err(err).Str("host", req.Host).Msg("Could not reach origin")
		p.respondError(conn, 500)
		return
	}
	p.logRequest(conn, requestLine(raw), false)
}

// receiveHeaders reads from conn until the blank-line terminator appears
// and returns the request bytes up to and including it. Bytes after the
// terminator that arrived in the same read (e.g. the start of a body) are
// discarded; anything the client sends later is left unread.
// Reaching maxHeaderSize without a terminator, or a connection that
// closes mid-headers, is a client protocol error.
func (p *Proxy) receiveHeaders(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, relayChunkSize)
	chunk := make([]byte, relayChunkSize)
	for {
		// never read past maxHeaderSize, so the ceiling holds regardless
		// of how the client's bytes are split across reads
		want := maxHeaderSize - len(buf)
		if want > len(chunk) {
			want = len(chunk)
		}
		n, err := conn.Read(chunk[:want])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if i := bytes.Index(buf, headerTerminator); i != -1 {
				return buf[:i+len(headerTerminator)], nil
			}
			if len(buf) >= maxHeaderSize {
				return nil, errHeaderTooLarge
			}
		}
		if err != nil {
			if len(buf) == 0 {
				return nil, errClientClosed
			}
			return nil, errTruncatedRead
		}
	}
}

// requestLine extracts the start line for logging.
func requestLine(raw []byte) string {
	if i := bytes.Index(raw, []byte("\r\n")); i != -1 {
		return string(raw[:i])
	}
	return string(raw)
}

func (p *Proxy) logRequest(conn net.Conn, line string, hit bool) {
	p.log.Debug().
		Str("request", line).
		Str("sourceIp", sourceIP(conn)).
		Bool("hit", hit).
		Msg("Sending response to client")
}

// sourceIP strips the port from the peer address.
func sourceIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
