package xs

import (
	"fmt"
	"strconv"
)

// Directory lists the children of dir/node. The reply is a NUL-separated
// vector of entry names.
func (c *Client) Directory(tx Tx, dir, node string) ([]string, error) {
	body, err := c.talk(tx, OpDirectory, cstring(joinPath(dir, node)))
	if err != nil {
		return nil, err
	}
	return nulSplit(body), nil
}

// Exists reports whether dir/node is present in the store.
func (c *Client) Exists(tx Tx, dir, node string) bool {
	_, err := c.Directory(tx, dir, node)
	return err == nil
}

// Read returns the value stored at dir/node. A zero-length value is valid
// and distinct from an error.
func (c *Client) Read(tx Tx, dir, node string) ([]byte, error) {
	return c.talk(tx, OpRead, cstring(joinPath(dir, node)))
}

// Write stores value at dir/node. The value itself is not NUL-terminated on
// the wire; it may contain arbitrary bytes.
func (c *Client) Write(tx Tx, dir, node, value string) error {
	_, err := c.talk(tx, OpWrite, cstring(joinPath(dir, node)), []byte(value))
	return err
}

// Mkdir creates the directory dir/node.
func (c *Client) Mkdir(tx Tx, dir, node string) error {
	_, err := c.talk(tx, OpMkdir, cstring(joinPath(dir, node)))
	return err
}

// Rm deletes dir/node. Directories must be empty.
func (c *Client) Rm(tx Tx, dir, node string) error {
	_, err := c.talk(tx, OpRm, cstring(joinPath(dir, node)))
	return err
}

// TransactionStart opens a server-side transaction and returns its handle.
// The suspend barrier is held shared from here until the matching
// TransactionEnd, so a save/restore cannot slice a transaction in half.
func (c *Client) TransactionStart() (Tx, error) {
	c.suspendMu.RLock()

	body, err := c.talk(NoTx, OpTransactionStart, cstring(""))
	if err != nil {
		// The transaction never began; drop the shared hold.
		c.suspendMu.RUnlock()
		return NoTx, err
	}

	id, perr := strconv.ParseUint(trimNul(body), 10, 32)
	if perr != nil {
		c.suspendMu.RUnlock()
		return NoTx, fmt.Errorf("xs: malformed transaction id %q: %w", trimNul(body), perr)
	}
	return Tx(id), nil
}

// TransactionEnd closes tx. With abort set the transaction is discarded,
// otherwise it commits; a commit may fail with EAGAIN when the snapshot
// conflicted, in which case the caller retries the whole transaction. The
// shared suspend hold taken at TransactionStart is released either way.
func (c *Client) TransactionEnd(tx Tx, abort bool) error {
	arg := "T"
	if abort {
		arg = "F"
	}
	_, err := c.talk(tx, OpTransactionEnd, cstring(arg))

	c.suspendMu.RUnlock()
	return err
}

// Scanf reads dir/node and scans it with fmt.Sscanf. It returns the number
// of fields matched; zero matches is reported as ErrorRange so callers can
// tell "value malformed" from other failures.
func (c *Client) Scanf(tx Tx, dir, node, format string, args ...interface{}) (int, error) {
	val, err := c.Read(tx, dir, node)
	if err != nil {
		return 0, err
	}
	n, _ := fmt.Sscanf(string(val), format, args...)
	if n == 0 {
		return 0, ErrorRange
	}
	return n, nil
}

// printfBufferSize bounds a formatted Printf value.
const printfBufferSize = 4096

// Printf formats a value and writes it to dir/node. Output that would not
// fit the protocol's value buffer is rejected with ErrorInvalid rather than
// truncated.
func (c *Client) Printf(tx Tx, dir, node, format string, args ...interface{}) error {
	s := fmt.Sprintf(format, args...)
	if len(s) > printfBufferSize-1 {
		return ErrorInvalid
	}
	return c.Write(tx, dir, node, s)
}

// GatherField names one node under a Gather directory and where to store its
// value. With a Format the value is scanned into Dest via fmt.Sscanf; with
// an empty Format, Dest must be a *string and receives the raw value.
type GatherField struct {
	Name   string
	Format string
	Dest   interface{}
}

// Gather reads a sequence of nodes under dir, stopping at the first
// failure. A field whose value matches none of its format's conversions
// fails with ErrorInvalid.
func (c *Client) Gather(tx Tx, dir string, fields ...GatherField) error {
	for _, f := range fields {
		val, err := c.Read(tx, dir, f.Name)
		if err != nil {
			return err
		}
		if f.Format == "" {
			dest, ok := f.Dest.(*string)
			if !ok {
				return ErrorInvalid
			}
			*dest = string(val)
			continue
		}
		if n, _ := fmt.Sscanf(string(val), f.Format, f.Dest); n == 0 {
			return ErrorInvalid
		}
	}
	return nil
}
