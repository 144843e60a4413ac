// Package unixconn adapts the byte-stream endpoints xenstored exposes into
// an xs.Transport: the daemon's unix domain socket in userspace, or the
// /dev/xen/xenbus device file from inside a guest. Both speak the same
// framing; this package only moves bytes.
package unixconn

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rfratto/xenstore/xs"
	"go.uber.org/atomic"
)

// Well-known xenstored endpoints.
const (
	DefaultSocketPath = "/var/run/xenstored/socket"
	DefaultDevicePath = "/dev/xen/xenbus"
)

// Conn implements xs.Transport over any io.ReadWriteCloser.
type Conn struct {
	log log.Logger
	rwc io.ReadWriteCloser

	closed     atomic.Bool
	rmut, wmut sync.Mutex
}

var _ xs.Transport = (*Conn)(nil)

// New wraps rwc. The Conn takes ownership of rwc; close the Conn instead.
func New(l log.Logger, rwc io.ReadWriteCloser) *Conn {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &Conn{log: l, rwc: rwc}
}

// Dial connects to a xenstored unix socket. An empty path uses
// DefaultSocketPath.
func Dial(l log.Logger, path string) (*Conn, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	nc, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("unixconn: dial %s: %w", path, err)
	}
	return New(l, nc), nil
}

// OpenDevice opens the xenbus device file of a guest domain. An empty path
// uses DefaultDevicePath.
func OpenDevice(l log.Logger, path string) (*Conn, error) {
	if path == "" {
		path = DefaultDevicePath
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("unixconn: open %s: %w", path, err)
	}
	return New(l, f), nil
}

// WriteAll writes every byte of b, blocking until the peer has accepted it.
func (c *Conn) WriteAll(b []byte) error {
	c.wmut.Lock()
	defer c.wmut.Unlock()

	n, err := c.rwc.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("unixconn: partial write: %d of %d bytes", n, len(b))
	}
	return nil
}

// ReadFull blocks until b has been filled exactly.
func (c *Conn) ReadFull(b []byte) error {
	c.rmut.Lock()
	defer c.rmut.Unlock()

	_, err := io.ReadFull(c.rwc, b)
	return err
}

// Close closes the connection. No more reads or writes can occur.
func (c *Conn) Close() (err error) {
	if c.closed.CAS(false, true) {
		err = c.rwc.Close()
		level.Debug(c.log).Log("msg", "closed xenstored connection", "err", err)
	}
	return err
}
