package cacheproxy

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

var reasonPhrase = map[int]string{
	400: "Bad Request",
	500: "Internal Server Error",
	501: "Not Implemented",
	505: "HTTP Version Not Supported",
}

// errorResponse formats a minimal empty-body reply.
func errorResponse(code int, now time.Time) []byte {
	return []byte(fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\nDate: %s\r\n\r\n",
		code, reasonPhrase[code], now.UTC().Format(http.TimeFormat)))
}

// respondError writes a minimal error reply to the client, best effort.
// Write failures are swallowed: the client may already be gone, and
// there is nothing left to tell it.
func (p *Proxy) respondError(conn net.Conn, code int) {
	p.log.Debug().
		Int("status", code).
		Str("sourceIp", sourceIP(conn)).
		Msg("Sending error response to client")
	conn.Write(errorResponse(code, time.Now()))
}
