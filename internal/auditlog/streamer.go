package auditlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/domain"
)

// DefaultTopic is the Kafka topic change events are streamed to when the
// configuration names none.
const DefaultTopic = "warden.change-log"

// Producer is the slice of the Kafka client the streamer depends on.
// *kgo.Client satisfies it.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Streamer decorates a Store and mirrors every appended entry onto a Kafka
// topic for downstream consumers (compliance pipelines, SIEM ingestion).
// The double write is fail-closed in both directions: an entry that cannot
// be persisted is not streamed, and a streaming failure is surfaced even
// though the row already landed, so the caller refuses the decision and a
// duplicate row on retry is preferred over a silent gap on the topic.
type Streamer struct {
	inner  Store
	client Producer
	topic  string
}

// NewStreamer builds a streaming decorator around inner. An empty topic
// falls back to DefaultTopic.
func NewStreamer(inner Store, client Producer, topic string) *Streamer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Streamer{inner: inner, client: client, topic: topic}
}

func (s *Streamer) AppendChange(ctx context.Context, entry domain.TrailEntry) error {
	if err := s.inner.AppendChange(ctx, entry); err != nil {
		return err
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		// Keyed by node so per-resource history stays ordered within a
		// partition.
		Key:   []byte(entry.NodeID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("stream change event: %w", err)
	}
	return nil
}

func (s *Streamer) ListByNode(ctx context.Context, nodeID string, limit int) ([]domain.TrailEntry, error) {
	return s.inner.ListByNode(ctx, nodeID, limit)
}

func (s *Streamer) ListRecent(ctx context.Context, limit int) ([]domain.TrailEntry, error) {
	return s.inner.ListRecent(ctx, limit)
}

// Close flushes buffered records and releases the Kafka client.
func (s *Streamer) Close() {
	s.client.Close()
}
