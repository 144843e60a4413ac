package xs

import (
	"errors"

	"github.com/go-kit/log/level"
	uuid "github.com/satori/go.uuid"
)

// Watch is a subscription to changes under a XenStore path. The registrant
// owns the struct; the client references it while registered and from any
// queued events. Callback receives the event's string vector: element
// WatchPath is the path that changed, WatchToken the registration token, and
// servers may append extras.
//
// Callbacks run serialized on a dedicated goroutine; at most one callback is
// in flight across all watches. Callbacks must not block indefinitely and
// must not call Unwatch on their own watch.
type Watch struct {
	Node     string
	Callback func(w *Watch, vec []string)

	// Wire token identifying this registration. The server echoes it on
	// every event. Assigned at registration; deliberately not derived from
	// the record's address.
	token string
}

// Token returns the wire token for the registration, or "" before Watch is
// called.
func (w *Watch) Token() string { return w.token }

// Watch registers w with the server. A server answer of EEXIST counts as
// success: the watch was already registered, which happens across
// suspend/resume cycles. Any other server failure rolls the registration
// back and is returned.
func (c *Client) Watch(w *Watch) error {
	w.token = uuid.NewV4().String()

	c.suspendMu.RLock()
	defer c.suspendMu.RUnlock()

	c.watchMu.Lock()
	c.watches = append(c.watches, w)
	c.watchMu.Unlock()

	err := c.sendWatch(w.Node, w.token)
	if err != nil && !errors.Is(err, ErrorExists) {
		c.watchMu.Lock()
		c.removeWatchLocked(w)
		c.watchMu.Unlock()
		return err
	}
	return nil
}

// Unwatch removes w. The server is told to drop the watch, but a failure
// there is only logged: from the client's perspective the watch is gone
// either way. Events for w still sitting in the dispatch queue are
// discarded, so no new callback for w starts after Unwatch returns.
func (c *Client) Unwatch(w *Watch) {
	c.suspendMu.RLock()

	c.watchMu.Lock()
	c.removeWatchLocked(w)
	c.watchMu.Unlock()

	if _, err := c.talk(NoTx, OpUnwatch, cstring(w.Node), cstring(w.token)); err != nil {
		level.Warn(c.log).Log("msg", "failed to release watch", "node", w.Node, "err", err)
	}

	c.suspendMu.RUnlock()

	// Cancel pending events for w. Identity match, not token match: the
	// registration record is the truth.
	c.eventMu.Lock()
	kept := c.events[:0]
	for _, ev := range c.events {
		if ev.w != w {
			kept = append(kept, ev)
		}
	}
	c.events = kept
	c.eventMu.Unlock()
}

// sendWatch issues the WATCH command for (node, token).
func (c *Client) sendWatch(node, token string) error {
	_, err := c.talk(NoTx, OpWatch, cstring(node), cstring(token))
	return err
}

// findWatchLocked scans the registry for the watch holding token. Caller
// holds watchMu.
func (c *Client) findWatchLocked(token string) *Watch {
	for _, w := range c.watches {
		if w.token == token {
			return w
		}
	}
	return nil
}

// removeWatchLocked deletes w from the registry, preserving registration
// order of the remainder. Caller holds watchMu.
func (c *Client) removeWatchLocked(w *Watch) {
	for i, cand := range c.watches {
		if cand == w {
			c.watches = append(c.watches[:i], c.watches[i+1:]...)
			return
		}
	}
}
