// Package xs implements a client for the XenStore protocol: the shared
// configuration and synchronization database a hypervisor exposes to guest
// domains. A single byte stream to xenstored carries both request/reply
// traffic and asynchronous watch notifications; this package multiplexes
// that stream between any number of concurrent callers and a set of
// registered watch callbacks.
//
// xs can be used with any kind of transport that presents xenstored as an
// ordered byte stream. The unixconn subpackage provides transports for the
// daemon's unix socket and for the /dev/xen/xenbus device file.
package xs

// Transport moves raw protocol bytes between the client and xenstored. Both
// directions block: WriteAll returns once every byte of b has been accepted
// by the peer, ReadFull returns once b has been filled exactly. The framing
// of the underlying channel (shared-memory ring, socket, device file) is
// invisible here; the client only sees a byte stream.
type Transport interface {
	WriteAll(b []byte) error
	ReadFull(b []byte) error

	// Close the connection. Blocked reads and writes must return an error
	// after Close.
	Close() error
}
