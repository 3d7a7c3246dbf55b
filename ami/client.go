package ami

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// state values for Client's lifecycle.
const (
	stateUnstarted int32 = iota
	stateRunning
	stateStopped
)

// Stream is what the Client needs from the caller-supplied transport: a
// blocking (or context-respecting) duplex byte stream. A *net.TCPConn
// satisfies it directly. The Client never closes it.
type Stream interface {
	io.Reader
	io.Writer
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger installs a *zap.Logger for the client's internal lifecycle
// and fault logging. A nil logger (the default) is equivalent to
// zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithHooks installs the client's byte-level and lifecycle observability
// hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithQueueDepth sets the default buffer size for subscribers created via
// NewChannelSubscriber through the client's convenience helpers. It does
// not affect subscribers the caller constructs directly.
func WithQueueDepth(depth int) Option {
	return func(c *Client) {
		if depth > 0 {
			c.queueDepth = depth
		}
	}
}

// withBannerValidator installs an extra check that Start runs on the
// banner after the standard "Asterisk Call Manager" prefix check has
// passed. It does not replace that check: a non-Asterisk banner is still
// rejected. Unexported: not part of the public surface.
func withBannerValidator(f func(line string) error) Option {
	return func(c *Client) { c.validateBanner = f }
}

// Client owns the stream, the worker loop, the pending table, and the
// subscriber set. It exposes Start/Publish/Subscribe/Unsubscribe/Stop as
// an explicit state machine guarded by a single write mutex and a
// channel-based pending table, so concurrent Publish callers never
// interleave writes and each gets exactly its own response.
type Client struct {
	log            *zap.Logger
	hooks          Hooks
	queueDepth     int
	validateBanner func(line string) error

	state int32

	writeMu sync.Mutex
	stream  Stream

	pending *pendingTable
	subs    *subscriberSet

	stopOnce sync.Once
	workerWG sync.WaitGroup
}

// New constructs an unstarted Client.
func New(opts ...Option) *Client {
	c := &Client{
		log:        zap.NewNop(),
		queueDepth: defaultQueueDepth,
		pending:    newPendingTable(),
		subs:       newSubscriberSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start stores stream, synchronously reads and validates the AMI banner,
// then spawns the worker goroutine. It requires the client be Unstarted.
func (c *Client) Start(stream Stream) error {
	if stream == nil {
		return ErrArgument
	}
	if !atomic.CompareAndSwapInt32(&c.state, stateUnstarted, stateRunning) {
		return ErrAlreadyStarted
	}

	c.stream = stream

	teed := &teeReader{r: stream, onRead: c.hooks.dataReceived}
	lr := NewLineReader(teed)
	fa := NewFrameAssembler(lr)

	banner, err := fa.ReadBanner()
	if err == nil && c.validateBanner != nil {
		err = c.validateBanner(banner)
	}
	if err != nil {
		atomic.StoreInt32(&c.state, stateStopped)
		c.log.Warn("ami: handshake failed", zap.Error(err))
		return err
	}
	c.log.Info("ami: handshake complete", zap.String("banner", banner))

	c.workerWG.Add(1)
	go c.run(fa)

	return nil
}

// run is the client's single long-lived worker loop: it reads frames off
// the wire and hands each one to dispatch until the connection faults or
// closes, then stops the client.
func (c *Client) run(fa *FrameAssembler) {
	defer c.workerWG.Done()

	for {
		msg, err := fa.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.log.Debug("ami: connection closed cleanly")
				c.stopInternal(nil)
				return
			}
			c.log.Error("ami: fatal read fault", zap.Error(err))
			c.stopInternal(err)
			return
		}

		c.dispatch(msg)
	}
}

// dispatch routes an inbound message: one whose first field is "Response"
// and whose ActionID matches a pending request goes to that request's
// caller; everything else goes to subscribers. The check is deliberately
// on the first field, not merely "has an ActionID", because Asterisk
// stamps the originating action's ActionID onto the Event frames a
// list-producing action generates too — those must still reach
// subscribers rather than being mistaken for the action's own response.
func (c *Client) dispatch(msg Message) {
	if key, ok := msg.FirstKey(); ok && strings.EqualFold(key, "Response") {
		if id, ok := msg.ActionID(); ok {
			if slot, found := c.pending.TryTake(id); found {
				slot <- pendingOutcome{msg: msg}
				return
			}
		}
	}
	c.subs.DispatchNext(msg)
}

// Publish registers a pending slot for msg's ActionID, writes msg to the
// stream under the write lock, and awaits the matching response. ctx
// governs only the caller's wait; it does not cancel a write already in
// flight.
func (c *Client) Publish(ctx context.Context, msg Message) (Message, error) {
	// A client that failed its handshake goes straight from Unstarted to
	// Stopped without ever running; from the caller's perspective it
	// never came up, so this still surfaces as NotStarted rather than a
	// separate "closed" error.
	if atomic.LoadInt32(&c.state) != stateRunning {
		return Message{}, ErrNotStarted
	}

	id, ok := msg.ActionID()
	if !ok || id == "" {
		return Message{}, ErrArgument
	}

	slot := make(pendingSlot, 1)
	if !c.pending.TryInsert(id, slot) {
		return Message{}, ErrDuplicateActionID
	}

	b := msg.ToBytes()

	c.writeMu.Lock()
	_, werr := c.stream.Write(b)
	c.writeMu.Unlock()

	c.hooks.dataSent(b)

	if werr != nil {
		ioErr := &IOError{Op: "write", Err: werr}
		c.pending.TryTake(id) // remove our own slot before the fault drain races it
		c.stopInternal(ioErr)
		return Message{}, ioErr
	}

	select {
	case outcome := <-slot:
		if outcome.err != nil {
			return Message{}, outcome.err
		}
		return outcome.msg, nil
	case <-ctx.Done():
		c.pending.TryTake(id)
		return Message{}, ctx.Err()
	}
}

// Subscribe adds sub to the set of observers receiving unsolicited events
// and the terminal lifecycle signal. Subscribing the same observer twice
// is idempotent.
func (c *Client) Subscribe(sub Subscriber) (*subscriberHandle, error) {
	if sub == nil {
		return nil, ErrArgument
	}
	if atomic.LoadInt32(&c.state) != stateRunning {
		return nil, ErrNotStarted
	}
	return c.subs.Add(sub), nil
}

// Unsubscribe removes sub. It is idempotent.
func (c *Client) Unsubscribe(sub Subscriber) {
	c.subs.Remove(sub)
}

// Stop transitions the client to Stopped, draining the pending table
// (Cancelled) and the subscriber set (OnCompleted), and firing the
// Stopped hook. It is idempotent: only the first call does any work.
func (c *Client) Stop() {
	c.stopInternal(nil)
}

// stopInternal performs the one-shot terminal transition. cause is nil
// for a voluntary Stop, or the fault that drove it.
func (c *Client) stopInternal(cause error) {
	c.stopOnce.Do(func() {
		atomic.StoreInt32(&c.state, stateStopped)

		if cause != nil {
			c.pending.DrainWith(cause)
		} else {
			c.pending.DrainWith(ErrCancelled)
		}
		c.subs.DispatchTerminal(cause)

		c.writeMu.Lock()
		c.stream = nil
		c.writeMu.Unlock()

		c.hooks.stopped(cause)

		if cause != nil {
			c.log.Info("ami: stopped", zap.Error(cause))
		} else {
			c.log.Info("ami: stopped")
		}
	})
}

// teeReader wraps an io.Reader, invoking onRead with each chunk
// successfully read before returning it to the caller. Used to implement
// the DataReceived hook at the boundary LineReader actually reads at.
type teeReader struct {
	r      io.Reader
	onRead func([]byte)
}

func (t *teeReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 && t.onRead != nil {
		t.onRead(append([]byte(nil), p[:n]...))
	}
	return n, err
}
