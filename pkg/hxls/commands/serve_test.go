package commands

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStdioPipeIsANetConn(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	var conn net.Conn = stdioPipe{in: r, out: w}

	require.Equal(t, "stdio", conn.LocalAddr().Network())
	require.Equal(t, "stdio", conn.RemoteAddr().String())
	require.NoError(t, conn.SetDeadline(time.Now()))
	require.NoError(t, conn.SetReadDeadline(time.Now()))
	require.NoError(t, conn.SetWriteDeadline(time.Now()))

	n, err := conn.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	buf := make([]byte, 4)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))
}

func TestBuildServeCmdFlags(t *testing.T) {
	cmd := BuildServeCmd()
	require.NotNil(t, cmd.Flags().Lookup("pipe"))
	require.NotNil(t, cmd.Flags().Lookup("rpc-trace"))
}
