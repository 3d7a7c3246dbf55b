package ami

import (
	"sync"

	"go.uber.org/zap"
)

// defaultQueueDepth is the default size of a ChannelSubscriber's event
// buffer.
const defaultQueueDepth = 64

// ChannelSubscriber is a Subscriber backed by a buffered channel, the
// idiomatic Go shape for an observer that would rather range over a
// channel than implement three interface methods. A full queue drops the
// newest event and logs the drop rather than blocking the worker loop.
type ChannelSubscriber struct {
	events chan Message
	done   chan struct{}
	log    *zap.Logger

	mu       sync.Mutex
	lastErr  error
	finished bool
}

// NewChannelSubscriber creates a ChannelSubscriber with the given queue
// depth (defaultQueueDepth if depth <= 0).
func NewChannelSubscriber(depth int, log *zap.Logger) *ChannelSubscriber {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChannelSubscriber{
		events: make(chan Message, depth),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Events returns the channel of delivered messages. It is closed after the
// terminal signal, once every already-queued message has been drained.
func (c *ChannelSubscriber) Events() <-chan Message {
	return c.events
}

// Done is closed when the terminal signal has been delivered.
func (c *ChannelSubscriber) Done() <-chan struct{} {
	return c.done
}

// Err returns the cause of termination once Done is closed: nil for a
// voluntary completion, the fault otherwise.
func (c *ChannelSubscriber) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// OnNext implements Subscriber.
func (c *ChannelSubscriber) OnNext(msg Message) {
	select {
	case c.events <- msg:
	default:
		c.log.Warn("ami: subscriber queue full, dropping event",
			zap.String("action_id", firstOrEmpty(msg)))
	}
}

// OnError implements Subscriber.
func (c *ChannelSubscriber) OnError(err error) {
	c.finish(err)
}

// OnCompleted implements Subscriber.
func (c *ChannelSubscriber) OnCompleted() {
	c.finish(nil)
}

func (c *ChannelSubscriber) finish(err error) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.lastErr = err
	c.mu.Unlock()

	close(c.events)
	close(c.done)
}

func firstOrEmpty(m Message) string {
	id, _ := m.ActionID()
	return id
}
