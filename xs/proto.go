package xs

import "strconv"

// Op is a XenStore operation code. Requests carry the op they want executed;
// replies echo an op back. The client treats ops as opaque except for the
// handful that drive routing and the transaction barrier.
type Op uint32

// Operation codes from the xenstored wire protocol.
const (
	OpDebug              Op = 0
	OpDirectory          Op = 1
	OpRead               Op = 2
	OpGetPerms           Op = 3
	OpWatch              Op = 4
	OpUnwatch            Op = 5
	OpTransactionStart   Op = 6
	OpTransactionEnd     Op = 7
	OpIntroduce          Op = 8
	OpRelease            Op = 9
	OpGetDomainPath      Op = 10
	OpWrite              Op = 11
	OpMkdir              Op = 12
	OpRm                 Op = 13
	OpSetPerms           Op = 14
	OpWatchEvent         Op = 15
	OpError              Op = 16
	OpIsDomainIntroduced Op = 17
	OpResume             Op = 18
	OpSetTarget          Op = 19
)

var opNames = map[Op]string{
	OpDebug:              "DEBUG",
	OpDirectory:          "DIRECTORY",
	OpRead:               "READ",
	OpGetPerms:           "GET_PERMS",
	OpWatch:              "WATCH",
	OpUnwatch:            "UNWATCH",
	OpTransactionStart:   "TRANSACTION_START",
	OpTransactionEnd:     "TRANSACTION_END",
	OpIntroduce:          "INTRODUCE",
	OpRelease:            "RELEASE",
	OpGetDomainPath:      "GET_DOMAIN_PATH",
	OpWrite:              "WRITE",
	OpMkdir:              "MKDIR",
	OpRm:                 "RM",
	OpSetPerms:           "SET_PERMS",
	OpWatchEvent:         "WATCH_EVENT",
	OpError:              "ERROR",
	OpIsDomainIntroduced: "IS_DOMAIN_INTRODUCED",
	OpResume:             "RESUME",
	OpSetTarget:          "SET_TARGET",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "op " + strconv.Itoa(int(o))
}

// Tx identifies a server-side transaction. Reads inside a transaction see a
// consistent snapshot; writes become visible atomically on commit. The zero
// value NoTx means "no transaction".
type Tx uint32

// NoTx is the sentinel transaction handle for non-transactional requests.
const NoTx Tx = 0

// Header is the fixed header that starts every protocol message, request and
// reply alike. All fields are little-endian 32-bit integers on the wire; Len
// bounds the payload that follows the header.
type Header struct {
	Op    Op     // Operation being requested, or kind of reply.
	ReqID uint32 // Echoed by the server; unused by this client.
	TxID  uint32 // Transaction the message belongs to, or 0.
	Len   uint32 // Payload length in bytes.
}

// HeaderSize is the encoded size of a Header in bytes.
const HeaderSize = 16

// Positions of the conventional elements in a WATCH_EVENT payload vector.
// Servers may append extra elements; the client forwards them verbatim.
const (
	WatchPath  = 0
	WatchToken = 1
)
