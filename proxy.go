package cacheproxy

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/ericselin/cacheproxy/cache"
)

const (
	// DefaultPort is used when no port is configured.
	DefaultPort = 8080
	// DefaultMaxClients bounds the number of concurrently served
	// connections; further accepted connections wait for a free slot.
	DefaultMaxClients = 400
	// DefaultCapacityBytes is the total cache budget.
	DefaultCapacityBytes = 200 << 20
	// DefaultMaxEntryBytes caps single cache entries.
	DefaultMaxEntryBytes = 10 << 20

	// maxHeaderSize is the hard ceiling for a request's start line and
	// headers. A client that sends this much without a blank line is
	// answered with 400.
	maxHeaderSize = 64 << 10
	// relayChunkSize is the unit of all socket reads.
	relayChunkSize = 4096
)

// Config carries the settings for a Proxy.
type Config struct {
	// Port to listen on; DefaultPort if zero.
	Port int
	// MaxClients bounds concurrent connections; DefaultMaxClients if zero.
	MaxClients int
	// Cache stores proxied responses. Required.
	Cache cache.Cache
	// MaxEntryBytes stops the relay from buffering responses that the
	// cache would reject anyway. Should match the cache's own ceiling.
	MaxEntryBytes int64
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Proxy is a forward HTTP/1.x proxy for GET requests with an in-memory
// response cache. One goroutine serves each accepted connection, gated
// by a fixed-size admission semaphore.
type Proxy struct {
	cache    cache.Cache
	log      zerolog.Logger
	port     int
	gate     chan struct{}
	maxEntry int64
	listener net.Listener
}

// New initializes a proxy from config. It does not open any sockets;
// call Run (or Listen and Serve) to start it.
func New(config Config) *Proxy {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	port := config.Port
	if port == 0 {
		port = DefaultPort
	}
	maxClients := config.MaxClients
	if maxClients == 0 {
		maxClients = DefaultMaxClients
	}

	return &Proxy{
		cache:    config.Cache,
		log:      logger.With().Int("port", port).Logger(),
		port:     port,
		gate:     make(chan struct{}, maxClients),
		maxEntry: config.MaxEntryBytes,
	}
}

// Listen opens the listening socket on all IPv4 interfaces with address
// reuse enabled. Failures here are fatal to the process by contract;
// the caller decides how to exit.
func (p *Proxy) Listen() error {
	lc := net.ListenConfig{Control: reuseAddr}
	listener, err := lc.Listen(context.Background(), "tcp4", fmt.Sprintf("0.0.0.0:%d", p.port))
	if err != nil {
		return err
	}
	p.listener = listener
	p.log.Info().Str("addr", listener.Addr().String()).Msg("Proxy listening")
	return nil
}

// Addr returns the listener's address. Only valid after Listen.
func (p *Proxy) Addr() net.Addr {
	return p.listener.Addr()
}

// Serve runs the accept loop forever. Per-connection failures are
// logged and the loop continues; only a dead listener ends it.
func (p *Proxy) Serve() error {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				p.log.Warn().Err(err).Msg("Accept failed, continuing")
				continue
			}
			return err
		}
		go p.handle(conn)
	}
}

// Run opens the listening socket and serves until the listener fails.
func (p *Proxy) Run() error {
	if err := p.Listen(); err != nil {
		return err
	}
	return p.Serve()
}

// reuseAddr sets SO_REUSEADDR before bind so restarts do not trip over
// sockets lingering in TIME_WAIT.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
