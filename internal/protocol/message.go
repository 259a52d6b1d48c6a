// Package protocol implements the bridge message channel: length-prefixed
// frames carrying requests and responses in JSON or CBOR.
package protocol

import (
	"bytes"
	"fmt"
)

// Response types.
const (
	TypeResults = "results"
	TypeUpdate  = "update"
)

// RawValue is an encoded value kept as the bytes it arrived as. Request ids
// and arguments stay raw so ids are echoed back unchanged and arguments are
// decoded only by the handler that knows their shape.
//
// A RawValue holds bytes of the codec that produced it and must only be
// re-encoded with that codec.
type RawValue []byte

var (
	jsonNull = []byte("null")
	cborNull = []byte{0xf6}
)

// MarshalJSON returns the raw bytes, or null when empty.
func (v RawValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return jsonNull, nil
	}
	return v, nil
}

// UnmarshalJSON stores a copy of data.
func (v *RawValue) UnmarshalJSON(data []byte) error {
	if v == nil {
		return fmt.Errorf("protocol: UnmarshalJSON on nil RawValue")
	}
	*v = append((*v)[:0], data...)
	return nil
}

// MarshalCBOR returns the raw bytes, or CBOR null when empty.
func (v RawValue) MarshalCBOR() ([]byte, error) {
	if len(v) == 0 {
		return cborNull, nil
	}
	return v, nil
}

// UnmarshalCBOR stores a copy of data.
func (v *RawValue) UnmarshalCBOR(data []byte) error {
	if v == nil {
		return fmt.Errorf("protocol: UnmarshalCBOR on nil RawValue")
	}
	*v = append((*v)[:0], data...)
	return nil
}

// IsNull reports whether v is empty or an encoded null.
func (v RawValue) IsNull() bool {
	return len(v) == 0 || bytes.Equal(v, jsonNull) || bytes.Equal(v, cborNull)
}

// Request is an inbound message naming a command or subscription.
type Request struct {
	ID      RawValue `json:"id" cbor:"id"`
	Command string   `json:"command" cbor:"command"`
	Args    RawValue `json:"args,omitempty" cbor:"args,omitempty"`

	codec Codec
}

// NewRequest encodes id and args with codec. A nil args is sent without
// an args field.
func NewRequest(codec Codec, id any, command string, args any) (*Request, error) {
	rawID, err := codec.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode request id: %w", err)
	}
	req := &Request{ID: rawID, Command: command, codec: codec}
	if args != nil {
		rawArgs, err := codec.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode %s args: %w", command, err)
		}
		req.Args = rawArgs
	}
	return req, nil
}

// Bind decodes the request arguments into v. Missing or null arguments
// leave v untouched.
func (r *Request) Bind(v any) error {
	if r.Args.IsNull() {
		return nil
	}
	codec := r.codec
	if codec == nil {
		codec = JSON
	}
	return codec.Unmarshal(r.Args, v)
}

// Response is an outbound message answering a request. Results is encoded
// by the channel codec.
type Response struct {
	ID      RawValue `json:"id" cbor:"id"`
	Type    string   `json:"type" cbor:"type"`
	Results any      `json:"results" cbor:"results"`
}

// Reply is a response as seen by the requesting side, with results kept
// raw until the caller decodes them.
type Reply struct {
	ID      RawValue `json:"id" cbor:"id"`
	Type    string   `json:"type" cbor:"type"`
	Results RawValue `json:"results" cbor:"results"`
}
