package p2p

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
)

// Envelope is the wire frame: a message type tag plus its gob-encoded
// payload. Payload is carried as an interface value; gob embeds the
// registered concrete type's name in the stream, so a receiver can decode
// straight into the right struct without the sender and receiver agreeing
// out of band.
type Envelope struct {
	Type    MessageType
	Payload any
}

// WriteFrame encodes an envelope for msgType/payload and writes it to conn
// as len(u32 big-endian) ∥ gob(envelope). payload's concrete type must have
// been registered with gob.Register (see protocol.go's init).
func WriteFrame(conn net.Conn, msgType MessageType, payload any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(Envelope{Type: msgType, Payload: payload}); err != nil {
		return fmt.Errorf("p2p: encode %s envelope: %w", msgType, err)
	}
	data := buf.Bytes()
	if len(data) > MaxFrameSize {
		return fmt.Errorf("p2p: outgoing frame of %d bytes exceeds %d byte limit", len(data), MaxFrameSize)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("p2p: write frame length: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("p2p: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed envelope from conn and returns its
// type tag and already-decoded payload value, ready for a type assertion
// into the struct matching msgType. Frames declaring a length over
// MaxFrameSize are rejected without reading their body.
func ReadFrame(conn net.Conn) (MessageType, any, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
		return "", nil, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxFrameSize {
		return "", nil, fmt.Errorf("p2p: incoming frame of %d bytes exceeds %d byte limit", n, MaxFrameSize)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(conn, data); err != nil {
		return "", nil, fmt.Errorf("p2p: read frame body: %w", err)
	}

	var env Envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return "", nil, fmt.Errorf("p2p: decode envelope: %w", err)
	}
	return env.Type, env.Payload, nil
}
