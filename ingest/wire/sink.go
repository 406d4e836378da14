package wire

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// URL schemes accepted by ParseURL.
const (
	SchemePlain = "modality-ingest"
	SchemeTLS   = "modality-ingest-tls"
)

// DefaultPort is used when an ingest URL has no port.
const DefaultPort = 14182

// DefaultURL is the ingest endpoint used when none is configured.
const DefaultURL = SchemePlain + "://localhost:14182"

// ErrAuthRejected is returned when the server rejects the auth token.
var ErrAuthRejected = errors.New("ingest server rejected authentication")

// ProtocolError reports an unexpected message from the server.
type ProtocolError struct {
	Want string
	Got  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: expected %s message, got %q", e.Want, e.Got)
}

// Endpoint is a parsed ingest URL.
type Endpoint struct {
	Addr string
	TLS  bool
}

// ParseURL parses a modality-ingest:// or modality-ingest-tls:// URL.
func ParseURL(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid ingest URL %q: %w", raw, err)
	}

	var ep Endpoint
	switch u.Scheme {
	case SchemePlain:
	case SchemeTLS:
		ep.TLS = true
	default:
		return Endpoint{}, fmt.Errorf("invalid ingest URL %q: scheme must be %s or %s", raw, SchemePlain, SchemeTLS)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("invalid ingest URL %q: missing host", raw)
	}

	port := u.Port()
	if port == "" {
		port = strconv.Itoa(DefaultPort)
	}
	ep.Addr = net.JoinHostPort(u.Hostname(), port)
	return ep, nil
}

// Config configures Dial.
type Config struct {
	// URL is the ingest endpoint (modality-ingest[-tls]://host[:port]).
	URL string
	// Token is sent in the auth message.
	Token string
	// Codec encodes frames. Defaults to Msgpack.
	Codec Codec
	// DialTimeout bounds connection setup and the auth exchange.
	// Defaults to 10s.
	DialTimeout time.Duration
	// TLSConfig is used for modality-ingest-tls URLs. Defaults to a config
	// with the URL host as server name.
	TLSConfig *tls.Config
	// Logger is optional.
	Logger *log.Logger
}

// Sink writes ops as frames to an ingest server connection.
//
// Safe for concurrent use; writes are serialized.
type Sink struct {
	mu     sync.Mutex
	conn   net.Conn
	w      *bufio.Writer
	codec  Codec
	closed bool
}

// NewSink wraps an established, authenticated connection.
func NewSink(conn net.Conn, codec Codec) *Sink {
	if codec == nil {
		codec = Msgpack
	}
	return &Sink{conn: conn, w: bufio.NewWriter(conn), codec: codec}
}

// Dial connects to the ingest server, performs the auth handshake, and
// returns a sink on the connection.
func Dial(ctx context.Context, cfg Config) (*Sink, error) {
	rawURL := cfg.URL
	if rawURL == "" {
		rawURL = DefaultURL
	}
	ep, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	codec := cfg.Codec
	if codec == nil {
		codec = Msgpack
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var conn net.Conn
	if ep.TLS {
		tlsCfg := cfg.TLSConfig
		if tlsCfg == nil {
			host, _, _ := net.SplitHostPort(ep.Addr)
			tlsCfg = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		d := &tls.Dialer{Config: tlsCfg}
		conn, err = d.DialContext(dialCtx, "tcp", ep.Addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(dialCtx, "tcp", ep.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to ingest server %s: %w", ep.Addr, err)
	}

	if err := Handshake(dialCtx, conn, codec, cfg.Token); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("connected to ingest server", map[string]any{
			"addr":  ep.Addr,
			"tls":   ep.TLS,
			"codec": codec.Name(),
		})
	}
	return NewSink(conn, codec), nil
}

// Handshake sends the auth message on conn and waits for the response.
func Handshake(ctx context.Context, conn net.Conn, codec Codec, token string) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer func() { _ = conn.SetDeadline(time.Time{}) }()
	}

	auth := &Message{Type: TypeAuth, Token: token, Protocol: types.ProtocolVersion}
	if err := WriteMessage(conn, codec, auth); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	resp, err := ReadMessage(conn, codec)
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if resp.Type != TypeAuthResponse {
		return &ProtocolError{Want: TypeAuthResponse, Got: resp.Type}
	}
	if !resp.OK {
		if resp.Text != "" {
			return fmt.Errorf("%w: %s", ErrAuthRejected, resp.Text)
		}
		return ErrAuthRejected
	}
	return nil
}

// WriteOps encodes and writes the batch, then flushes the connection.
// The context deadline, if any, bounds the write.
func (s *Sink) WriteOps(ctx context.Context, ops []ingest.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("wire sink is closed")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
		defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()
	}

	for _, op := range ops {
		if err := WriteMessage(s.w, s.codec, FromOp(op)); err != nil {
			return fmt.Errorf("write %s: %w", op.Kind, err)
		}
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush ingest connection: %w", err)
	}
	return nil
}

// Close closes the connection. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

var _ ingest.Sink = (*Sink)(nil)
