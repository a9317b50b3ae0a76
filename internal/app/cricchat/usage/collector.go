package usage

import (
	"sync"
	"time"
)

// ToolCallEvent 一次 MCP 工具调用
type ToolCallEvent struct {
	Tool     string        `json:"tool"`
	Status   string        `json:"status"` // ok / error
	Duration time.Duration `json:"duration"`
	CalledAt time.Time     `json:"called_at"`
	ClientIP string        `json:"client_ip,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Collector 收集器接口，channel 与 Kafka 两种实现
type Collector interface {
	Collect(event ToolCallEvent)
	Close()
}

// ChannelCollector 基于 channel 的收集器，满了直接丢弃
type ChannelCollector struct {
	mu     sync.RWMutex
	ch     chan ToolCallEvent
	closed bool
}

func NewChannelCollector(bufferSize int) *ChannelCollector {
	return &ChannelCollector{ch: make(chan ToolCallEvent, bufferSize)}
}

func (c *ChannelCollector) Collect(event ToolCallEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- event:
	default:
		// 通道满了，丢弃
	}
}

func (c *ChannelCollector) Events() <-chan ToolCallEvent {
	return c.ch
}

func (c *ChannelCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Nop 不收集
type Nop struct{}

func (Nop) Collect(ToolCallEvent) {}
func (Nop) Close()                {}
