// Package peer is the requesting side of a bridge channel: it sends
// commands with fresh request ids, matches replies to callers, and routes
// subscription updates.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mj1618/tab-bridge/internal/protocol"
	"github.com/mj1618/tab-bridge/internal/server"
)

// ErrClosed is returned once the channel to the bridge has ended.
var ErrClosed = errors.New("bridge connection closed")

// RemoteError is an error payload returned by the bridge.
type RemoteError struct {
	Command string
	Message string
	Code    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Command, e.Message, e.Code)
}

// Is matches the server sentinels for the error code.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case server.ErrResourceUnavailable:
		return e.Code == server.CodeResourceUnavailable
	case server.ErrInvalidArgs:
		return e.Code == server.CodeInvalidArgs
	}
	return false
}

// Client multiplexes calls and subscriptions over one channel.
type Client struct {
	conn   *protocol.Conn
	closer io.Closer
	logger *slog.Logger

	pending sync.Map // encoded request id -> chan *protocol.Reply
	subs    sync.Map // encoded request id -> *Subscription

	done      chan struct{}
	err       error
	closeOnce sync.Once
}

// NewClient starts reading replies from conn. closer, when non-nil, is
// closed by Close to end the channel.
func NewClient(conn *protocol.Conn, closer io.Closer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		conn:   conn,
		closer: closer,
		logger: logger,
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		reply, err := c.conn.ReceiveReply()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedMessage) {
				c.logger.Warn("dropping malformed reply", "error", err)
				continue
			}
			if !errors.Is(err, io.EOF) {
				c.err = err
			}
			c.subs.Range(func(key, value any) bool {
				value.(*Subscription).shutdown(ErrClosed)
				c.subs.Delete(key)
				return true
			})
			return
		}
		c.route(reply)
	}
}

func (c *Client) route(reply *protocol.Reply) {
	key := string(reply.ID)
	switch reply.Type {
	case protocol.TypeResults:
		if ch, ok := c.pending.LoadAndDelete(key); ok {
			ch.(chan *protocol.Reply) <- reply
			return
		}
		if sub, ok := c.subs.LoadAndDelete(key); ok {
			s := sub.(*Subscription)
			s.shutdown(c.remoteError(s.command, reply.Results))
			return
		}
	case protocol.TypeUpdate:
		if sub, ok := c.subs.Load(key); ok {
			sub.(*Subscription).deliver(reply.Results)
			return
		}
	}
	c.logger.Debug("dropping unmatched reply", "type", reply.Type)
}

// remoteError returns the error carried by an error payload, or nil.
func (c *Client) remoteError(command string, results protocol.RawValue) error {
	if results.IsNull() {
		return nil
	}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	// Non-object results fail to decode and are not errors.
	if err := c.conn.DecodeResults(results, &payload); err != nil || payload.Error == "" {
		return nil
	}
	return &RemoteError{Command: command, Message: payload.Error, Code: payload.Code}
}

func (c *Client) closedErr() error {
	if c.err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, c.err)
	}
	return ErrClosed
}

// Call sends a command and decodes its results into out, which may be nil.
// A command the bridge does not know is never answered; Call then returns
// when ctx is done.
func (c *Client) Call(ctx context.Context, command string, args, out any) error {
	req, err := protocol.NewRequest(c.conn.Codec(), uuid.NewString(), command, args)
	if err != nil {
		return err
	}
	key := string(req.ID)
	ch := make(chan *protocol.Reply, 1)
	c.pending.Store(key, ch)
	defer c.pending.Delete(key)

	if err := c.conn.SendRequest(req); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}

	select {
	case reply := <-ch:
		if err := c.remoteError(command, reply.Results); err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		if err := c.conn.DecodeResults(reply.Results, out); err != nil {
			return fmt.Errorf("%s: decode results: %w", command, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: no reply: %w", command, ctx.Err())
	case <-c.done:
		return fmt.Errorf("%s: %w", command, c.closedErr())
	}
}

// Subscribe registers for updates of a subscription command. Updates
// arrive on the returned subscription until ctx is done, the bridge
// rejects the subscription, or the channel ends.
func (c *Client) Subscribe(ctx context.Context, command string) (*Subscription, error) {
	req, err := protocol.NewRequest(c.conn.Codec(), uuid.NewString(), command, nil)
	if err != nil {
		return nil, err
	}
	key := string(req.ID)
	sub := newSubscription(command, c.conn)
	c.subs.Store(key, sub)

	if err := c.conn.SendRequest(req); err != nil {
		c.subs.Delete(key)
		return nil, fmt.Errorf("%s: %w", command, err)
	}

	go func() {
		select {
		case <-ctx.Done():
			c.subs.Delete(key)
			sub.shutdown(nil)
		case <-c.done:
		case <-sub.stopped:
		}
	}()
	return sub, nil
}

// Done is closed when the channel ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close ends the channel and waits for the reply reader to stop.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.closer != nil {
			err = c.closer.Close()
		}
		<-c.done
	})
	return err
}

// Subscription delivers the raw results of each update. Updates queue
// without bound until read, so a slow reader never holds up replies to
// other requests on the channel.
type Subscription struct {
	command string
	conn    *protocol.Conn
	ch      chan protocol.RawValue
	wake    chan struct{}
	stopped chan struct{}

	mu     sync.Mutex
	queue  []protocol.RawValue
	closed bool
	err    error
	once   sync.Once
}

func newSubscription(command string, conn *protocol.Conn) *Subscription {
	s := &Subscription{
		command: command,
		conn:    conn,
		ch:      make(chan protocol.RawValue, 16),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go s.pump()
	return s
}

// Updates returns the update channel. It is closed when the subscription
// ends; Err then reports why.
func (s *Subscription) Updates() <-chan protocol.RawValue { return s.ch }

// Decode decodes one update into v.
func (s *Subscription) Decode(raw protocol.RawValue, v any) error {
	return s.conn.DecodeResults(raw, v)
}

// Err returns the error that ended the subscription, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// deliver queues an update without blocking.
func (s *Subscription) deliver(v protocol.RawValue) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, v)
	}
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump moves queued updates to ch in arrival order and closes ch once the
// subscription has ended.
func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		queue := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		if len(queue) == 0 {
			if closed {
				return
			}
			select {
			case <-s.wake:
			case <-s.stopped:
			}
			continue
		}
		for _, v := range queue {
			select {
			case s.ch <- v:
			case <-s.stopped:
				return
			}
		}
	}
}

func (s *Subscription) shutdown(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = err
		s.queue = nil
		s.mu.Unlock()
		close(s.stopped)
	})
}
