package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/orderflow/pkg/logging"
	"github.com/dmehra2102/orderflow/pkg/outbox"
)

var _ outbox.Producer = (*Writer)(nil)

func TestNewWriter_KeysOrdersToOnePartition(t *testing.T) {
	w := NewWriter(logging.Discard(), []string{"localhost:9092"})
	defer func() { _ = w.Close() }()

	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Errorf("expected hash balancer so events of one order stay ordered, got %T", w.Balancer)
	}
	if w.Topic != "" {
		t.Errorf("writer topic must be empty, got %q", w.Topic)
	}
	if w.RequiredAcks != kafka.RequireAll {
		t.Errorf("unexpected acks %v", w.RequiredAcks)
	}
}
