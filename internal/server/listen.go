package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/mj1618/tab-bridge/internal/protocol"
)

// Accept retry delays after a failed Accept.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// ServeListener accepts connections on listener and serves each as its own
// channel. All channels share the dispatcher's registry. It blocks until
// ctx is cancelled, then closes the listener and every open connection and
// waits for them to finish.
func (d *Dispatcher) ServeListener(ctx context.Context, listener net.Listener, codec protocol.Codec) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		conns = make(map[net.Conn]struct{})
		wg    sync.WaitGroup
	)

	go func() {
		<-ctx.Done()
		listener.Close()
		mu.Lock()
		for conn := range conns {
			conn.Close()
		}
		mu.Unlock()
	}()

	d.logger.Info("listening", "address", listener.Addr().String(), "codec", codec.Name())

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			delay = min(max(2*delay, minAcceptDelay), maxAcceptDelay)
			d.logger.Error("accept failed", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		// The closer may already have swept conns.
		mu.Lock()
		if ctx.Err() != nil {
			mu.Unlock()
			conn.Close()
			break
		}
		conns[conn] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, conn)
				mu.Unlock()
				conn.Close()
			}()
			if err := d.Serve(ctx, protocol.NewConn(conn, conn, codec)); err != nil && ctx.Err() == nil {
				d.logger.Warn("connection ended", "error", err)
			}
		}()
	}

	cancel()
	wg.Wait()
	return nil
}
