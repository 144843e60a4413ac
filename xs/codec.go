package xs

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// marshalHeader encodes h into its 16-byte wire form.
func marshalHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Op))
	binary.LittleEndian.PutUint32(buf[4:8], h.ReqID)
	binary.LittleEndian.PutUint32(buf[8:12], h.TxID)
	binary.LittleEndian.PutUint32(buf[12:16], h.Len)
	return buf
}

// unmarshalHeader decodes a 16-byte wire header.
func unmarshalHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("xs: short header: %d bytes", len(b))
	}
	return Header{
		Op:    Op(binary.LittleEndian.Uint32(b[0:4])),
		ReqID: binary.LittleEndian.Uint32(b[4:8]),
		TxID:  binary.LittleEndian.Uint32(b[8:12]),
		Len:   binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

// cstring returns s as a NUL-terminated payload part.
func cstring(s string) []byte {
	return append([]byte(s), 0)
}

// nulJoin flattens parts into a single payload of NUL-terminated strings.
func nulJoin(parts []string) []byte {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
		buf = append(buf, 0)
	}
	return buf
}

// nulSplit parses a payload of NUL-terminated strings. A missing terminator
// on the final element is tolerated; xenstored omits it in some replies.
func nulSplit(body []byte) []string {
	var out []string
	for len(body) > 0 {
		i := bytes.IndexByte(body, 0)
		if i == -1 {
			out = append(out, string(body))
			break
		}
		out = append(out, string(body[:i]))
		body = body[i+1:]
	}
	return out
}

// trimNul strips trailing NUL bytes from a reply body so it can be used as a
// Go string.
func trimNul(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// joinPath returns dir with /node appended. An empty node names dir itself.
func joinPath(dir, node string) string {
	if node == "" {
		return dir
	}
	return dir + "/" + node
}
