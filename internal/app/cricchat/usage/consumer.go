package usage

import (
	"context"
	"log/slog"
	"time"
)

// Consumer 批量消费调用事件并汇总
type Consumer struct {
	agg       *Aggregator
	collector *ChannelCollector
	batchSize int
	interval  time.Duration
}

func NewConsumer(agg *Aggregator, collector *ChannelCollector) *Consumer {
	return &Consumer{
		agg:       agg,
		collector: collector,
		batchSize: 100,         // 批量大小
		interval:  time.Second, // 最大等待时间
	}
}

// Run 阻塞，直到 ctx 结束或 collector 关闭
func (c *Consumer) Run(ctx context.Context) {
	batch := make([]ToolCallEvent, 0, c.batchSize)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush(batch) // 清理剩余事件
			return
		case event, ok := <-c.collector.Events():
			if !ok {
				c.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= c.batchSize {
				c.flush(batch)
				batch = batch[:0] // 保留容量，避免反复分配
			}
		case <-ticker.C:
			if len(batch) > 0 {
				c.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (c *Consumer) flush(batch []ToolCallEvent) {
	if len(batch) == 0 {
		return
	}
	c.agg.Add(batch)
	slog.Debug("tool usage: flushed", "count", len(batch))
}
