package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/plugsmith/internal/logfields"
)

// DefaultSubject prefixes every published event subject.
const DefaultSubject = "plugsmith.events"

// Publisher is the JetStream publishing surface the sink needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSSink publishes events as JSON to "<subject>.<event type>".
type NATSSink struct {
	conn    *nats.Conn
	pub     Publisher
	subject string
	timeout time.Duration
}

// NewNATSSink wraps an existing publisher.
func NewNATSSink(pub Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{pub: pub, subject: subject, timeout: 5 * time.Second}
}

// DialNATS connects to url and ensures a stream captures the event subjects.
func DialNATS(url, subject string) (*NATSSink, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url, nats.Name("plugsmith"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName(subject),
		Description: "plugsmith install events",
		Subjects:    []string{subject + ".>"},
		MaxAge:      30 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create event stream: %w", err)
	}

	slog.Info("NATS event sink initialized", logfields.URL(url), slog.String("subject", subject))

	sink := NewNATSSink(js, subject)
	sink.conn = conn
	return sink, nil
}

// StreamName derives a JetStream stream name from a subject prefix.
func StreamName(subject string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(subject))
}

// Subject returns the subject an event is published on.
func (s *NATSSink) Subject(t Type) string {
	return s.subject + "." + string(t)
}

// Emit implements Sink.
func (s *NATSSink) Emit(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.pub.Publish(ctx, s.Subject(e.Type), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published event", slog.String("event", string(e.Type)), logfields.PluginID(e.PluginID))
	return nil
}

// Close drains the underlying connection when the sink owns one.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
