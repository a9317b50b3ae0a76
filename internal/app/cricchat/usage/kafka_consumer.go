package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConsumer 从 topic 读调用事件并汇总；多实例时每个实例用自己的 group
type KafkaConsumer struct {
	reader    *kafka.Reader
	agg       *Aggregator
	batchSize int
	interval  time.Duration
}

func NewKafkaConsumer(brokers []string, topic, groupID string, agg *Aggregator) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		agg:       agg,
		batchSize: 100,
		interval:  time.Second,
	}
}

func (k *KafkaConsumer) Run(ctx context.Context) {
	batch := make([]ToolCallEvent, 0, k.batchSize)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	msgCh := make(chan ToolCallEvent, k.batchSize)

	go func() {
		defer close(msgCh)
		for {
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("kafka read failed", "err", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			event, err := decodeEvent(msg.Value)
			if err != nil {
				slog.Error("unmarshal tool call event failed", "err", err)
				continue
			}
			select {
			case msgCh <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			k.flush(batch)
			return
		case event, ok := <-msgCh:
			if !ok {
				k.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= k.batchSize {
				k.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				k.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func decodeEvent(data []byte) (ToolCallEvent, error) {
	var event ToolCallEvent
	err := json.Unmarshal(data, &event)
	return event, err
}

func (k *KafkaConsumer) flush(batch []ToolCallEvent) {
	if len(batch) == 0 {
		return
	}
	k.agg.Add(batch)
	slog.Debug("kafka consumer: flushed", "count", len(batch))
}

func (k *KafkaConsumer) Close() {
	if err := k.reader.Close(); err != nil {
		slog.Error("kafka reader close failed", "err", err)
	}
}
