package events

import (
	"sync"
)

// AnalyticsCollector consumes settlement events on a bounded queue drained
// by a fixed worker pool. It is best-effort: when the queue is full the
// event is counted as dropped rather than blocking a publisher.
type AnalyticsCollector struct {
	queue   chan Event
	wg      sync.WaitGroup
	mu      sync.Mutex
	counts  map[string]int64
	dropped int64
	once    sync.Once
}

// NewAnalyticsCollector starts the worker pool. Size the queue for burst
// absorption; workers only aggregate counters so a small pool suffices.
func NewAnalyticsCollector(queueSize, workers int) *AnalyticsCollector {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 2
	}
	c := &AnalyticsCollector{
		queue:  make(chan Event, queueSize),
		counts: make(map[string]int64),
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.work()
	}
	return c
}

// Record enqueues an event without blocking.
func (c *AnalyticsCollector) Record(e Event) {
	select {
	case c.queue <- e:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
	}
}

// Attach subscribes the collector to every settlement event on the bus.
func (c *AnalyticsCollector) Attach(bus *Bus) {
	names := []string{
		PaymentSucceededEvent,
		PaymentReleasedEvent,
		PaymentSettledEvent,
		PayoutSubmittedEvent,
		PayoutPaidEvent,
		PayoutFailedEvent,
		RefundCompletedEvent,
	}
	for _, name := range names {
		bus.Subscribe(name, c.Record)
	}
}

func (c *AnalyticsCollector) work() {
	defer c.wg.Done()
	for e := range c.queue {
		name := e.EventName()
		c.mu.Lock()
		c.counts[name]++
		c.mu.Unlock()
	}
}

// Counts returns a snapshot of per-event totals.
func (c *AnalyticsCollector) Counts() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Dropped returns how many events were discarded on a full queue.
func (c *AnalyticsCollector) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close stops the workers after draining the queue.
func (c *AnalyticsCollector) Close() {
	c.once.Do(func() {
		close(c.queue)
	})
	c.wg.Wait()
}
