package unixconn

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnReadWrite(t *testing.T) {
	local, remote := net.Pipe()
	c := New(nil, local)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		_, err := remote.Read(buf)
		require.NoError(t, err)
		_, err = remote.Write(buf)
		require.NoError(t, err)
	}()

	require.NoError(t, c.WriteAll([]byte("hello")))

	buf := make([]byte, 5)
	require.NoError(t, c.ReadFull(buf))
	require.Equal(t, []byte("hello"), buf)
	<-done
}

func TestConnReadFullWaitsForAllBytes(t *testing.T) {
	local, remote := net.Pipe()
	c := New(nil, local)
	defer c.Close()

	go func() {
		// Drip the bytes in two writes; ReadFull must block for both.
		_, _ = remote.Write([]byte("he"))
		_, _ = remote.Write([]byte("llo"))
	}()

	buf := make([]byte, 5)
	require.NoError(t, c.ReadFull(buf))
	require.Equal(t, []byte("hello"), buf)
}

func TestConnCloseIdempotent(t *testing.T) {
	local, _ := net.Pipe()
	c := New(nil, local)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	require.Error(t, c.WriteAll([]byte("x")))
}

func TestDialMissingSocket(t *testing.T) {
	_, err := Dial(nil, t.TempDir()+"/nonexistent.sock")
	require.Error(t, err)
}
