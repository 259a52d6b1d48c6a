package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mj1618/tab-bridge/internal/protocol"
)

// scriptedListener hands out queued Accept results, ahead of its own
// closing, and then blocks until closed.
type scriptedListener struct {
	results chan acceptResult
	closed  chan struct{}
	once    sync.Once
	accepts atomic.Int32
	// beforeAccept, when set, runs at the start of every Accept.
	beforeAccept func()
}

type acceptResult struct {
	conn net.Conn
	err  error
}

func newScriptedListener(queued ...acceptResult) *scriptedListener {
	l := &scriptedListener{
		results: make(chan acceptResult, len(queued)+1),
		closed:  make(chan struct{}),
	}
	for _, r := range queued {
		l.results <- r
	}
	return l
}

func (l *scriptedListener) Accept() (net.Conn, error) {
	l.accepts.Add(1)
	if l.beforeAccept != nil {
		l.beforeAccept()
	}
	select {
	case r := <-l.results:
		return r.conn, r.err
	default:
	}
	select {
	case r := <-l.results:
		return r.conn, r.err
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *scriptedListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *scriptedListener) Addr() net.Addr { return &net.UnixAddr{Name: "scripted", Net: "unix"} }

func serveListener(ctx context.Context, l net.Listener) <-chan error {
	done := make(chan error, 1)
	go func() { done <- NewDispatcher(NewRegistry()).ServeListener(ctx, l, protocol.JSON) }()
	return done
}

func TestServeListenerBacksOffAcceptErrors(t *testing.T) {
	var queued []acceptResult
	for range 6 {
		queued = append(queued, acceptResult{err: errors.New("accept: too many open files")})
	}
	l := newScriptedListener(queued...)
	ctx, cancel := context.WithCancel(context.Background())
	done := serveListener(ctx, l)

	time.Sleep(30 * time.Millisecond)
	if n := l.accepts.Load(); n > 4 {
		t.Errorf("Accept called %d times in 30ms, want a growing delay between retries", n)
	}

	cancel()
	if err := waitServe(t, done); err != nil {
		t.Errorf("ServeListener = %v", err)
	}
}

func TestServeListenerClosesConnAcceptedDuringShutdown(t *testing.T) {
	server, client := net.Pipe()
	l := newScriptedListener()
	ctx, cancel := context.WithCancel(context.Background())
	l.beforeAccept = func() {
		if l.accepts.Load() == 1 {
			cancel()
			// Let the shutdown sweep run before the connection is handed out.
			time.Sleep(20 * time.Millisecond)
			l.results <- acceptResult{conn: server}
		}
	}
	done := serveListener(ctx, l)

	if err := waitServe(t, done); err != nil {
		t.Errorf("ServeListener = %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("read from accepted conn = %v, want EOF after close", err)
	}
}
