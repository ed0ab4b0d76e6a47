package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config holds the connection settings applied to every call made through a
// transport built by NewTransport.
type Config struct {
	// ConnectTimeout bounds dialing a new connection.
	ConnectTimeout time.Duration
	// SocketTimeout bounds the wait for response headers once a request was sent.
	SocketTimeout time.Duration
	// MaxConnsPerHost caps open and idle connections per backend host.
	MaxConnsPerHost int
}

// DefaultConfig returns sensible defaults for a backend connection pool.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  5 * time.Second,
		SocketTimeout:   30 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// NewTransport builds a pooled transport. Retries are left to the caller; the
// transport itself never replays a request.
func NewTransport(cfg Config) *http.Transport {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = def.SocketTimeout
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.SocketTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
