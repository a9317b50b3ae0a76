package usage

import (
	"sort"
	"sync"
	"time"
)

type ToolTotals struct {
	Tool      string        `json:"tool"`
	Calls     int64         `json:"calls"`
	Errors    int64         `json:"errors"`
	TotalTime time.Duration `json:"-"`
	AvgMillis float64       `json:"avg_ms"`
	LastCall  time.Time     `json:"last_call"`
}

// Aggregator 进程内的按工具汇总，/debug 页面读取
type Aggregator struct {
	mu     sync.Mutex
	totals map[string]*ToolTotals
}

func NewAggregator() *Aggregator {
	return &Aggregator{totals: make(map[string]*ToolTotals)}
}

func (a *Aggregator) Add(batch []ToolCallEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range batch {
		t, ok := a.totals[e.Tool]
		if !ok {
			t = &ToolTotals{Tool: e.Tool}
			a.totals[e.Tool] = t
		}
		t.Calls++
		if e.Status != "ok" {
			t.Errors++
		}
		t.TotalTime += e.Duration
		if e.CalledAt.After(t.LastCall) {
			t.LastCall = e.CalledAt
		}
	}
}

// Snapshot 按工具名排序
func (a *Aggregator) Snapshot() []ToolTotals {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ToolTotals, 0, len(a.totals))
	for _, t := range a.totals {
		cp := *t
		if cp.Calls > 0 {
			cp.AvgMillis = float64(cp.TotalTime.Microseconds()) / 1000 / float64(cp.Calls)
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tool < out[j].Tool })
	return out
}
