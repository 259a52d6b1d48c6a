package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"

	"github.com/mj1618/tab-bridge/internal/protocol"
)

// SpawnOptions configures a child bridge process.
type SpawnOptions struct {
	// Executable defaults to the running binary.
	Executable string
	// Args are appended after "serve --stdio".
	Args   []string
	Codec  protocol.Codec
	Stderr io.Writer
	Logger *slog.Logger
}

// Spawn starts a bridge as a child process and talks to it over its
// standard input and output. Closing the client closes the child's stdin
// and waits for it to exit.
//
// ctx bounds startup only. The child keeps running after ctx is cancelled
// and does not receive the terminal's interrupt, so requests issued with a
// fresh context, such as restoring a window title, still reach it.
func Spawn(ctx context.Context, opts SpawnOptions) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exe := opts.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		exe = self
	}
	codec := opts.Codec
	if codec == nil {
		codec = protocol.JSON
	}

	args := append([]string{"serve", "--stdio", "--codec", codec.Name()}, opts.Args...)
	cmd := bridgeCommand(exe, args)
	cmd.Stderr = opts.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("bridge stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("bridge stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start bridge: %w", err)
	}

	closer := &childCloser{stdin: stdin, cmd: cmd}
	client := NewClient(protocol.NewConn(stdout, stdin, codec), closer, opts.Logger)
	closer.readerDone = client.Done()
	return client, nil
}

// bridgeCommand builds the child bridge command in its own process group.
func bridgeCommand(exe string, args []string) *exec.Cmd {
	cmd := exec.Command(exe, args...)
	detach(cmd)
	return cmd
}

// childCloser ends a child bridge. The child exits on stdin EOF; Wait
// closes stdout, so it runs only after the reply reader has drained it.
type childCloser struct {
	stdin      io.Closer
	cmd        *exec.Cmd
	readerDone <-chan struct{}
}

func (c *childCloser) Close() error {
	stdinErr := c.stdin.Close()
	<-c.readerDone
	waitErr := c.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return fmt.Errorf("bridge exited: %w", waitErr)
	}
	if waitErr != nil {
		return waitErr
	}
	return stdinErr
}

// Dial connects to a bridge listening on a unix socket.
func Dial(ctx context.Context, socketPath string, codec protocol.Codec, logger *slog.Logger) (*Client, error) {
	if codec == nil {
		codec = protocol.JSON
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", socketPath, err)
	}
	return NewClient(protocol.NewConn(conn, conn, codec), conn, logger), nil
}
