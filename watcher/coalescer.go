package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// flushTick is the fixed interval at which the flusher checks whether the
// coalescing window has elapsed.
const flushTick = 25 * time.Millisecond

// Coalescer merges bursts of events per path and feeds a bounded output
// queue. Within one coalescing window the FIRST event seen for a path wins;
// later events for the same path are discarded until the buffered one has
// been flushed. On queue overflow the oldest ready event is dropped with a
// warning instead of blocking the producer.
type Coalescer struct {
	window time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	pending   map[string]pendingEvent
	lastFlush time.Time

	out      chan Event
	done     chan struct{}
	runDone  chan struct{}
	stopOnce sync.Once
}

type pendingEvent struct {
	event      Event
	bufferedAt time.Time
}

// NewCoalescer creates a coalescer with the given window and output queue
// capacity and starts its background flusher.
func NewCoalescer(window time.Duration, capacity int, logger *slog.Logger) *Coalescer {
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	if capacity <= 0 {
		capacity = 100
	}
	c := &Coalescer{
		window:    window,
		logger:    logger,
		pending:   make(map[string]pendingEvent),
		lastFlush: time.Now(),
		out:       make(chan Event, capacity),
		done:      make(chan struct{}),
		runDone:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Events returns the bounded output queue.
func (c *Coalescer) Events() <-chan Event {
	return c.out
}

// Add buffers an event. If a buffered event for the same path is still
// younger than the coalescing window, the new event is discarded.
func (c *Coalescer) Add(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.pending[event.Path]; ok && time.Since(existing.bufferedAt) < c.window {
		return
	}
	c.pending[event.Path] = pendingEvent{event: event, bufferedAt: time.Now()}
}

// run flushes the buffer on a short fixed interval once the window has
// elapsed since the previous flush.
func (c *Coalescer) run() {
	defer close(c.runDone)
	ticker := time.NewTicker(flushTick)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.flush(false)
		}
	}
}

// flush moves every buffered event into the output queue and clears the
// buffer. Unless forced, it waits out the coalescing window between flushes.
func (c *Coalescer) flush(force bool) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	if !force && time.Since(c.lastFlush) < c.window {
		c.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(c.pending))
	for _, buffered := range c.pending {
		batch = append(batch, buffered.event)
	}
	c.pending = make(map[string]pendingEvent)
	c.lastFlush = time.Now()
	c.mu.Unlock()

	for _, event := range batch {
		c.enqueue(event)
	}
}

// enqueue places an event on the output queue, dropping the oldest ready
// event on overflow rather than blocking.
func (c *Coalescer) enqueue(event Event) {
	select {
	case c.out <- event:
		return
	default:
	}

	select {
	case dropped := <-c.out:
		c.logger.Warn("event queue full, dropping oldest event",
			"droppedPath", dropped.RelPath, "droppedKind", dropped.Kind.String())
	default:
	}

	select {
	case c.out <- event:
	default:
		c.logger.Warn("event queue full, dropping event",
			"path", event.RelPath, "kind", event.Kind.String())
	}
}

// Stop halts the flusher and waits for it to exit, performs one final
// synchronous flush of the buffer, and closes the output queue so consumers
// can drain what remains. The join comes first: a tick-driven flush may
// already hold a batch, and it must finish its sends before the queue can be
// safely closed. Producers must stop calling Add before Stop.
func (c *Coalescer) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		<-c.runDone
		c.flush(true)
		close(c.out)
	})
}
