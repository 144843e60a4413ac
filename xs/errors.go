package xs

import (
	"errors"
	"strconv"
)

// Error is a XenStore error code. The server reports failures as POSIX error
// mnemonics ("ENOENT", "EACCES", ...); they are mapped here to negative errno
// values, mirroring how the codes travel in kernel interfaces.
type Error int32

// Error codes xenstored is known to return. An unknown mnemonic is reported
// as ErrorInvalid.
const (
	ErrorNotPermitted  = Error(-0x01) // EPERM
	ErrorNotExist      = Error(-0x02) // ENOENT
	ErrorIO            = Error(-0x05) // EIO
	ErrorAgain         = Error(-0x0b) // EAGAIN
	ErrorNoMemory      = Error(-0x0c) // ENOMEM
	ErrorUnauthorized  = Error(-0x0d) // EACCES
	ErrorBusy          = Error(-0x10) // EBUSY
	ErrorExists        = Error(-0x11) // EEXIST
	ErrorIsDir         = Error(-0x15) // EISDIR
	ErrorInvalid       = Error(-0x16) // EINVAL
	ErrorNoSpace       = Error(-0x1c) // ENOSPC
	ErrorReadOnly      = Error(-0x1e) // EROFS
	ErrorRange         = Error(-0x22) // ERANGE
	ErrorUnimplemented = Error(-0x26) // ENOSYS
	ErrorNotEmpty      = Error(-0x27) // ENOTEMPTY
	ErrorIsConnected   = Error(-0x6a) // EISCONN
)

// Mnemonics as they appear in ERROR reply bodies.
var errorMnemonics = map[string]Error{
	"EPERM":     ErrorNotPermitted,
	"ENOENT":    ErrorNotExist,
	"EIO":       ErrorIO,
	"EAGAIN":    ErrorAgain,
	"ENOMEM":    ErrorNoMemory,
	"EACCES":    ErrorUnauthorized,
	"EBUSY":     ErrorBusy,
	"EEXIST":    ErrorExists,
	"EISDIR":    ErrorIsDir,
	"EINVAL":    ErrorInvalid,
	"ENOSPC":    ErrorNoSpace,
	"EROFS":     ErrorReadOnly,
	"ERANGE":    ErrorRange,
	"ENOSYS":    ErrorUnimplemented,
	"ENOTEMPTY": ErrorNotEmpty,
	"EISCONN":   ErrorIsConnected,
}

var errorDescriptions = map[Error]string{
	ErrorNotPermitted:  "operation not permitted",
	ErrorNotExist:      "no such node",
	ErrorIO:            "input/output error",
	ErrorAgain:         "resource temporarily unavailable",
	ErrorNoMemory:      "cannot allocate memory",
	ErrorUnauthorized:  "permission denied",
	ErrorBusy:          "device or resource busy",
	ErrorExists:        "node exists",
	ErrorIsDir:         "is a directory",
	ErrorInvalid:       "invalid argument",
	ErrorNoSpace:       "no space left in store",
	ErrorReadOnly:      "read-only store",
	ErrorRange:         "result out of range",
	ErrorUnimplemented: "operation not implemented",
	ErrorNotEmpty:      "directory not empty",
	ErrorIsConnected:   "domain already introduced",
}

// Error prints the description of the error.
func (e Error) Error() string {
	desc := errorDescriptions[e]
	if desc != "" {
		return desc
	}
	return "xenstore errno " + strconv.Itoa(int(e))
}

// ErrClosed is returned to callers blocked on a request or a reply when the
// client shuts down underneath them.
var ErrClosed = errors.New("xs: client closed")
