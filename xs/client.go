package xs

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"
)

// storedMsg is one decoded unit of work produced by the read loop.
type storedMsg struct {
	hdr  Header
	body []byte
}

// watchEvent is a pending callback invocation. It references the
// registration record directly so that unregistering can discard pending
// events by identity rather than by token.
type watchEvent struct {
	w   *Watch
	vec []string
}

// Client multiplexes a single xenstored byte stream between concurrent
// request/reply callers and watch callback delivery.
//
// Lock order, outermost first: suspendMu, reqMu or watchMu (disjoint),
// replyMu or eventMu (disjoint), dispatchMu. Never acquire in the other
// direction.
type Client struct {
	log log.Logger
	t   Transport

	// One request on the wire at a time.
	reqMu sync.Mutex

	// Protects transactions and watch mutations against suspend/resume.
	// Transaction and watch paths hold it shared; Suspend holds it
	// exclusively. Plain requests do not take it; they are held off by
	// reqMu while suspended.
	suspendMu sync.RWMutex

	// Replies decoded by the read loop, in server order. Only one will ever
	// be outstanding while reqMu is honored, but the queue does not rely on
	// that.
	replyMu   sync.Mutex
	replyCond *sync.Cond
	replies   []*storedMsg

	watchMu sync.Mutex
	watches []*Watch

	// Pending watch events, in server order.
	eventMu   sync.Mutex
	eventCond *sync.Cond
	events    []*watchEvent

	// Serializes user callbacks; at most one runs at a time.
	dispatchMu sync.Mutex

	closed atomic.Bool
}

// New creates a Client over t and starts its read and dispatch workers. The
// Client takes ownership of t; do not close it directly.
func New(l log.Logger, t Transport) *Client {
	if l == nil {
		l = log.NewNopLogger()
	}
	c := &Client{log: l, t: t}
	c.replyCond = sync.NewCond(&c.replyMu)
	c.eventCond = sync.NewCond(&c.eventMu)

	go c.readLoop()
	go c.dispatchLoop()
	return c
}

// Close shuts the client down. The transport is closed, both workers exit,
// and callers blocked on a reply fail with ErrClosed. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CAS(false, true) {
		return nil
	}
	err := c.t.Close()

	c.replyMu.Lock()
	c.replyCond.Broadcast()
	c.replyMu.Unlock()

	c.eventMu.Lock()
	c.eventCond.Broadcast()
	c.eventMu.Unlock()

	level.Debug(c.log).Log("msg", "closed xenstore client", "err", err)
	return err
}

// talk sends one request and returns the body of the matching reply. parts
// are concatenated on the wire; the header length is their combined size. A
// zero-length reply body is a valid success.
func (c *Client) talk(tx Tx, op Op, parts ...[]byte) ([]byte, error) {
	var n uint32
	for _, p := range parts {
		n += uint32(len(p))
	}
	hdr := Header{Op: op, TxID: uint32(tx), Len: n}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.closed.Load() {
		return nil, ErrClosed
	}

	if err := c.t.WriteAll(marshalHeader(hdr)); err != nil {
		return nil, fmt.Errorf("xs: write %s header: %w", op, err)
	}
	for _, p := range parts {
		if err := c.t.WriteAll(p); err != nil {
			return nil, fmt.Errorf("xs: write %s payload: %w", op, err)
		}
	}

	msg, err := c.readReply()
	if err != nil {
		return nil, err
	}

	if msg.hdr.Op == OpError {
		mnemonic := trimNul(msg.body)
		code, ok := errorMnemonics[mnemonic]
		if !ok {
			level.Warn(c.log).Log("msg", "server returned unknown error", "mnemonic", mnemonic)
			code = ErrorInvalid
		}
		return nil, code
	}

	// The reply op is not required to match the request op; tolerate a
	// mismatch and hand the body back regardless.
	return msg.body, nil
}

// readReply dequeues the next reply, blocking until the read loop produces
// one or the client closes.
func (c *Client) readReply() (*storedMsg, error) {
	c.replyMu.Lock()
	defer c.replyMu.Unlock()

	for len(c.replies) == 0 && !c.closed.Load() {
		c.replyCond.Wait()
	}
	if len(c.replies) == 0 {
		return nil, ErrClosed
	}
	msg := c.replies[0]
	c.replies = c.replies[1:]
	return msg, nil
}

// readLoop continuously decodes messages from the transport and routes them
// to the reply queue or, for WATCH_EVENT, the event queue.
func (c *Client) readLoop() {
	for {
		err := c.processMsg()
		if err == nil {
			continue
		}
		if c.closed.Load() {
			return
		}
		level.Error(c.log).Log("msg", "error reading from xenstore", "err", err)
		if errors.Is(err, io.EOF) {
			// The transport is gone for good; fail pending work instead of
			// retrying forever.
			_ = c.Close()
			return
		}
	}
}

func (c *Client) processMsg() error {
	hbuf := make([]byte, HeaderSize)
	if err := c.t.ReadFull(hbuf); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	hdr, err := unmarshalHeader(hbuf)
	if err != nil {
		return err
	}

	body := make([]byte, hdr.Len)
	if err := c.t.ReadFull(body); err != nil {
		return fmt.Errorf("read %s body: %w", hdr.Op, err)
	}

	if hdr.Op != OpWatchEvent {
		c.replyMu.Lock()
		c.replies = append(c.replies, &storedMsg{hdr: hdr, body: body})
		c.replyCond.Signal()
		c.replyMu.Unlock()
		return nil
	}

	vec := nulSplit(body)
	if len(vec) <= WatchToken {
		level.Warn(c.log).Log("msg", "malformed watch event", "elements", len(vec))
		return nil
	}

	c.watchMu.Lock()
	w := c.findWatchLocked(vec[WatchToken])
	if w != nil {
		c.eventMu.Lock()
		c.events = append(c.events, &watchEvent{w: w, vec: vec})
		c.eventCond.Signal()
		c.eventMu.Unlock()
	}
	c.watchMu.Unlock()

	if w == nil {
		// The watch was unregistered between server dispatch and local
		// arrival; expected, drop the event.
		level.Debug(c.log).Log("msg", "dropping event for unknown token", "path", vec[WatchPath])
	}
	return nil
}

// dispatchLoop drains the event queue, invoking one callback at a time.
func (c *Client) dispatchLoop() {
	for {
		ev := c.nextEvent()
		if ev == nil {
			return
		}
		c.dispatchMu.Lock()
		ev.w.Callback(ev.w, ev.vec)
		c.dispatchMu.Unlock()
	}
}

// nextEvent blocks until an event is pending or the client closes.
func (c *Client) nextEvent() *watchEvent {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	for len(c.events) == 0 && !c.closed.Load() {
		c.eventCond.Wait()
	}
	if len(c.events) == 0 {
		return nil
	}
	ev := c.events[0]
	c.events = c.events[1:]
	return ev
}

// Suspend freezes the client ahead of a hypervisor save/restore: the suspend
// barrier is taken exclusively so no transaction or watch mutation can begin,
// and the request mutex is held so no request is mid-flight on the ring.
// Every Suspend must be paired with a Resume.
func (c *Client) Suspend() {
	c.suspendMu.Lock()
	c.reqMu.Lock()
}

// Resume reopens the client after a save/restore and re-registers every
// watch with the server. Watches whose server-side state survived are
// re-accepted via EEXIST, which is not an error. Failures to re-register are
// collected per watch.
func (c *Client) Resume() error {
	c.reqMu.Unlock()

	// No watchMu needed: exclusive hold of the barrier keeps the registry
	// stable.
	var errs *multierror.Error
	for _, w := range c.watches {
		err := c.sendWatch(w.Node, w.token)
		if err != nil && !errors.Is(err, ErrorExists) {
			errs = multierror.Append(errs, fmt.Errorf("re-register watch on %s: %w", w.Node, err))
		}
	}

	c.suspendMu.Unlock()
	return errs.ErrorOrNil()
}

// DebugWrite sends an XS_DEBUG print command. The wire sequence is exactly
// "print\0" + s + "\0", and the server sends no reply worth waiting for.
func (c *Client) DebugWrite(s string) error {
	hdr := Header{Op: OpDebug, Len: uint32(len("print") + 1 + len(s) + 1)}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.t.WriteAll(marshalHeader(hdr)); err != nil {
		return fmt.Errorf("xs: write debug header: %w", err)
	}
	if err := c.t.WriteAll([]byte("print\x00")); err != nil {
		return fmt.Errorf("xs: write debug command: %w", err)
	}
	if err := c.t.WriteAll([]byte(s)); err != nil {
		return fmt.Errorf("xs: write debug body: %w", err)
	}
	if err := c.t.WriteAll([]byte{0}); err != nil {
		return fmt.Errorf("xs: write debug terminator: %w", err)
	}
	return nil
}
