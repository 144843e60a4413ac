package xs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	tt := []Header{
		{},
		{Op: OpRead, ReqID: 1, TxID: 7, Len: 5},
		{Op: OpWatchEvent, ReqID: math.MaxUint32, TxID: math.MaxUint32, Len: math.MaxUint32},
		{Op: OpError, Len: 7},
	}
	for _, in := range tt {
		raw := marshalHeader(in)
		require.Len(t, raw, HeaderSize)

		out, err := unmarshalHeader(raw)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestUnmarshalHeader_Short(t *testing.T) {
	_, err := unmarshalHeader(make([]byte, HeaderSize-1))
	require.Error(t, err)
}

func TestHeaderWireLayout(t *testing.T) {
	raw := marshalHeader(Header{Op: OpWrite, ReqID: 0x01020304, TxID: 0x0a0b0c0d, Len: 0x10})

	// Little-endian (type, req_id, tx_id, len).
	require.Equal(t, []byte{
		11, 0, 0, 0,
		0x04, 0x03, 0x02, 0x01,
		0x0d, 0x0c, 0x0b, 0x0a,
		0x10, 0, 0, 0,
	}, raw)
}

func TestNulSplitJoin(t *testing.T) {
	tt := []struct {
		parts []string
	}{
		{parts: nil},
		{parts: []string{"backend/vbd"}},
		{parts: []string{"/local/domain/0", "token-1"}},
		{parts: []string{"a", "", "c"}},
	}
	for _, tc := range tt {
		require.Equal(t, tc.parts, nulSplit(nulJoin(tc.parts)))
	}
}

func TestNulSplit_MissingTerminator(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, nulSplit([]byte("a\x00b")))
}

func TestNulSplit_Empty(t *testing.T) {
	require.Nil(t, nulSplit(nil))
	require.Nil(t, nulSplit([]byte{}))
}

func TestJoinPath(t *testing.T) {
	require.Equal(t, "/local/domain/0/name", joinPath("/local/domain/0", "name"))
	require.Equal(t, "/local/domain/0", joinPath("/local/domain/0", ""))
}

func TestCstring(t *testing.T) {
	require.Equal(t, []byte{'a', 'b', 0}, cstring("ab"))
	require.Equal(t, []byte{0}, cstring(""))
}
