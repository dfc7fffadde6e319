package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Topic: "documents"})
	require.Error(t, err)

	pub, err := New(Config{Brokers: []string{"localhost:9092"}, Topic: "documents"})
	require.NoError(t, err)
	w, ok := pub.writer.(*kafka.Writer)
	require.True(t, ok)
	require.Equal(t, "documents", w.Topic)
	require.Equal(t, 10*time.Second, w.WriteTimeout)
}

func TestPublishWritesKeyedJSON(t *testing.T) {
	t.Parallel()

	writer := &recordingWriter{}
	pub := &Publisher{writer: writer}
	event := ingest.DocumentEvent{RunID: "run-1", Title: "Order", SourceURL: "https://a"}

	require.NoError(t, pub.Publish(context.Background(), event))
	require.Len(t, writer.msgs, 1)
	require.Equal(t, "Order", string(writer.msgs[0].Key))

	var got ingest.DocumentEvent
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &got))
	require.Equal(t, event, got)
	require.Equal(t, "run_id", writer.msgs[0].Headers[1].Key)

	require.NoError(t, pub.Close())
	require.True(t, writer.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	pub := &Publisher{writer: &recordingWriter{err: boom}}
	require.ErrorIs(t, pub.Publish(context.Background(), ingest.DocumentEvent{Title: "x"}), boom)
}
