// Package nats publishes ingest ops to NATS JetStream.
//
// Each op is one message on subject <prefix>.<op kind>, encoded with a wire
// codec. Events and timeline declarations carry a JetStream message ID
// derived from the op, so a retried batch is deduplicated by the server.
package nats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/ingest/wire"
	"github.com/auxoncorp/modality-dlt-plugin/log"
)

// Defaults.
const (
	DefaultURL           = nats.DefaultURL
	DefaultStream        = "MODALITY_DLT"
	DefaultSubjectPrefix = "modality.dlt"
)

// Config configures Connect and NewSink.
type Config struct {
	// URL is the NATS server URL.
	URL string
	// Stream is the JetStream stream created to capture the subjects.
	Stream string
	// SubjectPrefix is prepended to the op kind.
	SubjectPrefix string
	// StreamID prefixes message IDs; it must be unique per ingestion run.
	StreamID string
	// Codec encodes messages. Defaults to wire.Msgpack.
	Codec wire.Codec
	// ConnectTimeout bounds connection setup. Defaults to 10s.
	ConnectTimeout time.Duration
	// Logger is optional.
	Logger *log.Logger
}

func (c *Config) setDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.Codec == nil {
		c.Codec = wire.Msgpack
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Publisher publishes one message. JetStream implements it through
// jetStreamPublisher; tests substitute an in-memory fake.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, msgID string) error
}

type jetStreamPublisher struct {
	js jetstream.JetStream
}

func (p jetStreamPublisher) Publish(ctx context.Context, subject string, data []byte, msgID string) error {
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	_, err := p.js.Publish(ctx, subject, data, opts...)
	return err
}

// Sink is an ingest.Sink publishing to JetStream.
type Sink struct {
	cfg       Config
	publisher Publisher
	closer    func() error

	mu     sync.Mutex
	closed bool
}

// NewSink creates a sink on an existing publisher. closer, if non-nil, is
// called by Close.
func NewSink(cfg Config, publisher Publisher, closer func() error) *Sink {
	cfg.setDefaults()
	return &Sink{cfg: cfg, publisher: publisher, closer: closer}
}

// Connect dials NATS, ensures the stream exists, and returns a sink.
func Connect(ctx context.Context, cfg Config) (*Sink, error) {
	cfg.setDefaults()

	opts := []nats.Option{
		nats.Name("modality-dlt"),
		nats.Timeout(cfg.ConnectTimeout),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize JetStream: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	_, err = js.CreateOrUpdateStream(streamCtx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("connected to NATS", map[string]any{
			"url":    cfg.URL,
			"stream": cfg.Stream,
			"prefix": cfg.SubjectPrefix,
		})
	}

	return NewSink(cfg, jetStreamPublisher{js: js}, func() error {
		return conn.Drain()
	}), nil
}

// Subject returns the subject an op of the given kind is published on.
func (s *Sink) Subject(kind ingest.OpKind) string {
	return s.cfg.SubjectPrefix + "." + string(kind)
}

// MsgID returns the deduplication ID for op. Event orderings are unique per
// stream and a timeline is declared once, so both identify their op.
// Switches are idempotent and carry no ID.
func (s *Sink) MsgID(op ingest.Op) string {
	switch op.Kind {
	case ingest.OpEvent:
		return s.cfg.StreamID + "-event-" + strconv.FormatUint(op.Ordering, 10)
	case ingest.OpTimelineAttrs:
		return s.cfg.StreamID + "-timeline-" + op.TimelineID.String()
	default:
		return ""
	}
}

// WriteOps publishes each op in order, stopping at the first failure.
func (s *Sink) WriteOps(ctx context.Context, ops []ingest.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("nats sink is closed")
	}

	for _, op := range ops {
		data, err := s.cfg.Codec.Marshal(wire.FromOp(op))
		if err != nil {
			return fmt.Errorf("encode %s: %w", op.Kind, err)
		}
		if err := s.publisher.Publish(ctx, s.Subject(op.Kind), data, s.MsgID(op)); err != nil {
			return fmt.Errorf("publish %s: %w", op.Kind, err)
		}
	}
	return nil
}

// Close drains the connection. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

var _ ingest.Sink = (*Sink)(nil)
