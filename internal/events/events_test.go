package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, payload)
	return &jetstream.PubAck{Stream: "PLUGSMITH_EVENTS", Sequence: uint64(len(f.subjects))}, nil
}

func TestNATSSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNATSSink(pub, "")

	require.NoError(t, sink.Emit(context.Background(), Event{Type: PluginAdded, PluginID: "com.example.p", Modules: 2}))
	require.Equal(t, []string{"plugsmith.events.plugin.added"}, pub.subjects)

	var got Event
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	require.Equal(t, PluginAdded, got.Type)
	require.Equal(t, 2, got.Modules)
	require.False(t, got.Timestamp.IsZero())
	require.NoError(t, sink.Close())
}

func TestNATSSinkPublishError(t *testing.T) {
	sink := NewNATSSink(&fakePublisher{err: errors.New("no responders")}, "custom")
	err := sink.Emit(context.Background(), Event{Type: PluginFailed})
	require.ErrorContains(t, err, "no responders")
	require.Equal(t, "custom.plugin.failed", sink.Subject(PluginFailed))
}

func TestStreamName(t *testing.T) {
	require.Equal(t, "PLUGSMITH_EVENTS", StreamName(DefaultSubject))
}

type failingSink struct{}

func (failingSink) Emit(context.Context, Event) error { return errors.New("down") }

func TestMultiJoinsErrors(t *testing.T) {
	rec := &Recorder{}
	m := Multi{LogSink{}, nil, failingSink{}, rec}

	err := m.Emit(context.Background(), Event{Type: ItemSkipped, Item: "lib-file x.so"})
	require.ErrorContains(t, err, "down")
	require.Equal(t, []Type{ItemSkipped}, rec.Types())
}
