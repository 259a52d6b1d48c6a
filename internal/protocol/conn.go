package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxMessageSize bounds a single frame payload in either direction.
const MaxMessageSize = 64 << 20

var (
	// ErrChannelFailure marks an unrecoverable read or write failure.
	ErrChannelFailure = errors.New("channel failure")
	// ErrMalformedMessage marks a frame whose payload could not be decoded.
	// The channel stays usable.
	ErrMalformedMessage = errors.New("malformed message")
)

// Conn is one duplex message channel. Each message is a 4-byte native-endian
// length followed by the payload. Reads must come from a single goroutine;
// writes are safe for concurrent use.
type Conn struct {
	r     io.Reader
	w     io.Writer
	codec Codec

	wmu sync.Mutex
}

// NewConn creates a channel over r and w. A nil codec uses JSON.
func NewConn(r io.Reader, w io.Writer, codec Codec) *Conn {
	if codec == nil {
		codec = JSON
	}
	return &Conn{r: r, w: w, codec: codec}
}

// Codec returns the payload codec.
func (c *Conn) Codec() Codec { return c.codec }

// ReadFrame returns the next frame payload. It returns io.EOF when the peer
// closed the channel between frames.
func (c *Conn) ReadFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrChannelFailure, err)
	}
	size := binary.NativeEndian.Uint32(header[:])
	if size > MaxMessageSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit of %d", ErrChannelFailure, size, MaxMessageSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return nil, fmt.Errorf("%w: read payload: %w", ErrChannelFailure, err)
	}
	return payload, nil
}

// WriteFrame writes one frame. Header and payload go out in a single write.
func (c *Conn) WriteFrame(payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: frame of %d bytes exceeds limit of %d", ErrChannelFailure, len(payload), MaxMessageSize)
	}
	buf := make([]byte, 4+len(payload))
	binary.NativeEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(buf); err != nil {
		return fmt.Errorf("%w: write: %w", ErrChannelFailure, err)
	}
	return nil
}

// ReadMessage reads one frame and decodes it into v.
func (c *Conn) ReadMessage(v any) error {
	payload, err := c.ReadFrame()
	if err != nil {
		return err
	}
	if err := c.codec.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return nil
}

// WriteMessage encodes v and writes it as one frame.
func (c *Conn) WriteMessage(v any) error {
	payload, err := c.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return c.WriteFrame(payload)
}

// Receive returns the next inbound request.
func (c *Conn) Receive() (*Request, error) {
	var req Request
	if err := c.ReadMessage(&req); err != nil {
		return nil, err
	}
	req.codec = c.codec
	return &req, nil
}

// Send writes a response.
func (c *Conn) Send(resp *Response) error {
	return c.WriteMessage(resp)
}

// SendRequest writes a request. Used by the requesting side of a channel.
func (c *Conn) SendRequest(req *Request) error {
	return c.WriteMessage(req)
}

// ReceiveReply returns the next inbound reply. Used by the requesting side.
func (c *Conn) ReceiveReply() (*Reply, error) {
	var reply Reply
	if err := c.ReadMessage(&reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// DecodeResults decodes raw results received on this channel into v.
func (c *Conn) DecodeResults(raw RawValue, v any) error {
	return c.codec.Unmarshal(raw, v)
}
