package cacheproxy

import (
	"bytes"
	"io"
	"net"
	"strconv"
	"strings"
)

// connectUpstream resolves host with the system resolver and dials it
// over IPv4. An empty port means the HTTP default; a non-numeric port
// parses as 0 and the dial fails accordingly.
func connectUpstream(host, port string) (net.Conn, error) {
	number := 80
	if port != "" {
		number, _ = strconv.Atoi(port)
	}
	return net.Dial("tcp4", net.JoinHostPort(host, strconv.Itoa(number)))
}

// rewrite builds the outbound request bytes for the origin: the request
// line with the target reduced to its path, and the original headers with
// Host and Connection replaced. Forcing
// Connection: close means the upstream sends exactly one response and
// ends it with EOF, which is what the relay loop expects.
func rewrite(req *Request) []byte {
	var b bytes.Buffer
	b.WriteString(req.Method + " " + req.Path + " " + req.Version + "\r\n")
	for _, h := range req.Headers {
		if strings.EqualFold(h.Key, "Host") || strings.EqualFold(h.Key, "Connection") {
			continue
		}
		b.WriteString(h.Key + ": " + h.Value + "\r\n")
	}
	b.WriteString("Host: " + req.Host + "\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	return b.Bytes()
}

// responseCapture accumulates the bytes relayed to the client so that the
// complete response can be inserted into the cache once the upstream
// stream ends. Accumulation stops past limit, since an entry that large
// would be rejected by the cache anyway; the relay itself continues.
type responseCapture struct {
	buf        bytes.Buffer
	limit      int64
	overflowed bool
}

func (c *responseCapture) add(p []byte) {
	if c.overflowed {
		return
	}
	if c.limit > 0 && int64(c.buf.Len()+len(p)) > c.limit {
		c.overflowed = true
		return
	}
	c.buf.Write(p)
}

// relay fetches the response for req from the origin and streams it to
// client while capturing it for insertion under key. The returned error
// is non-nil only when the upstream connection or request send failed
// before any response bytes could have reached the client; the caller
// then still owes the client an error response.
func (p *Proxy) relay(client net.Conn, req *Request, key string) error {
	upstream, err := connectUpstream(req.Host, req.Port)
	if err != nil {
		return err
	}
	defer upstream.Close()

	if _, err := upstream.Write(rewrite(req)); err != nil {
		return err
	}

	capture := responseCapture{limit: p.maxEntry}
	chunk := make([]byte, relayChunkSize)
	clientGone := false
	for {
		n, rerr := upstream.Read(chunk)
		if n > 0 {
			if !clientGone {
				if _, werr := client.Write(chunk[:n]); werr != nil {
					// the client went away mid-stream; keep reading so
					// the response can still be cached
					clientGone = true
					p.log.Debug().Err(werr).Str("host", req.Host).Msg("Client write failed during relay")
				}
			}
			capture.add(chunk[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			// interrupted response, never cache
			p.log.Warn().Err(rerr).Str("host", req.Host).Msg("Upstream read failed during relay")
			return nil
		}
	}

	if !capture.overflowed {
		p.cache.Put(key, capture.buf.Bytes())
	}
	return nil
}
