package commands

import (
	"net"
	"os"
	"time"

	"github.com/hx-lsp/hxls/pkg/lsp"
	"github.com/hx-lsp/hxls/pkg/lsprpc"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"

	"github.com/spf13/cobra"
)

// BuildServeCmd builds the serve command. The editor either passes a socket
// it listens on (--pipe) or speaks the protocol over stdio.
func BuildServeCmd() *cobra.Command {
	var pipe string
	var logRPC bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the language server",
		RunE: func(cmd *cobra.Command, args []string) error {
			lsp.ConfigureDefaultLogger(cmd.ErrOrStderr())

			var nc net.Conn
			if pipe != "" {
				cc, err := net.Dial("unix", pipe)
				if err != nil {
					return err
				}
				nc = cc
			} else {
				nc = stdioPipe{os.Stdin, os.Stdout}
			}
			stream := jsonrpc2.NewHeaderStream(nc)
			if logRPC {
				stream = protocol.LoggingStream(stream, cmd.ErrOrStderr())
			}
			conn := jsonrpc2.NewConn(stream)
			return lsprpc.NewStreamServer().ServeStream(cmd.Context(), conn)
		},
	}

	cmd.Flags().StringVar(&pipe, "pipe", "", "socket name to connect to (defaults to stdio)")
	cmd.Flags().BoolVar(&logRPC, "rpc-trace", false, "log all rpc messages to stderr")

	return cmd
}

// stdioPipe adapts the process's stdin/stdout to the net.Conn the header
// stream expects. Deadlines are accepted and ignored; pipes have none.
type stdioPipe struct {
	in  *os.File
	out *os.File
}

var _ net.Conn = stdioPipe{}

func (s stdioPipe) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s stdioPipe) Write(p []byte) (int, error) { return s.out.Write(p) }

func (s stdioPipe) Close() error {
	if err := s.in.Close(); err != nil {
		s.out.Close()
		return err
	}
	return s.out.Close()
}

func (s stdioPipe) LocalAddr() net.Addr  { return stdioAddr{} }
func (s stdioPipe) RemoteAddr() net.Addr { return stdioAddr{} }

func (s stdioPipe) SetDeadline(time.Time) error      { return nil }
func (s stdioPipe) SetReadDeadline(time.Time) error  { return nil }
func (s stdioPipe) SetWriteDeadline(time.Time) error { return nil }

type stdioAddr struct{}

func (stdioAddr) Network() string { return "stdio" }
func (stdioAddr) String() string  { return "stdio" }
