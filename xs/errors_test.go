package xs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMnemonics(t *testing.T) {
	require.Equal(t, ErrorNotExist, errorMnemonics["ENOENT"])
	require.Equal(t, ErrorExists, errorMnemonics["EEXIST"])
	require.Equal(t, ErrorAgain, errorMnemonics["EAGAIN"])

	_, known := errorMnemonics["EWOULDBLOCK"]
	require.False(t, known)
}

func TestErrorString(t *testing.T) {
	require.Equal(t, "no such node", ErrorNotExist.Error())
	require.Equal(t, "xenstore errno -9999", Error(-9999).Error())
}
