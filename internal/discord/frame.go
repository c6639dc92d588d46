package discord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Opcode represents a Discord IPC frame opcode.
type Opcode uint32

const (
	// OpHandshake is the opcode for the initial IPC handshake.
	OpHandshake Opcode = 0
	// OpFrame is the opcode for a standard IPC command frame.
	OpFrame Opcode = 1
	// OpClose is sent by Discord before it drops the connection. This client
	// never sends it.
	OpClose Opcode = 2
	// OpPing is a keepalive request from Discord; it must be answered with OpPong.
	OpPing Opcode = 3
	// OpPong answers OpPing, echoing its payload.
	OpPong Opcode = 4

	// HeaderSize is the byte length of the IPC frame header: a 4-byte
	// little-endian opcode followed by a 4-byte little-endian payload length.
	HeaderSize = 8

	// MaxPayloadSize bounds the JSON payload in either direction.
	MaxPayloadSize = 16384

	// maxIPCSlots is the number of IPC endpoints Discord may listen on (0-9).
	maxIPCSlots = 10
)

// ErrPayloadTooLarge is returned when a frame payload exceeds MaxPayloadSize.
var ErrPayloadTooLarge = errors.New("payload too large")

// String returns the opcode name used in log output.
func (o Opcode) String() string {
	switch o {
	case OpHandshake:
		return "HANDSHAKE"
	case OpFrame:
		return "FRAME"
	case OpClose:
		return "CLOSE"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	default:
		return fmt.Sprintf("OPCODE(%d)", uint32(o))
	}
}

// ///////////////////////////////////////////////
// Frame Encoding
// ///////////////////////////////////////////////

// EncodeFrame builds a Discord IPC frame: [4-byte LE opcode][4-byte LE length][payload].
// Oversized payloads are rejected before anything is allocated.
func EncodeFrame(opcode Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(opcode))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// ///////////////////////////////////////////////
// Frame Decoding
// ///////////////////////////////////////////////

// DecodeHeader splits a frame header into opcode and payload length. It fails
// with ErrPayloadTooLarge when the advertised length exceeds MaxPayloadSize;
// the caller must not read that many bytes.
func DecodeHeader(header [HeaderSize]byte) (Opcode, uint32, error) {
	opcode := Opcode(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxPayloadSize {
		return opcode, length, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, length, MaxPayloadSize)
	}
	return opcode, length, nil
}

// DecodeFrame reads a single Discord IPC frame from reader.
// It handles partial reads via io.ReadFull.
func DecodeFrame(reader io.Reader) (opcode Opcode, payload []byte, err error) {
	var header [HeaderSize]byte
	if _, err = io.ReadFull(reader, header[:]); err != nil {
		return 0, nil, fmt.Errorf("reading frame header: %w", err)
	}

	opcode, length, err := DecodeHeader(header)
	if err != nil {
		return 0, nil, err
	}

	payload = make([]byte, length)
	if _, err = io.ReadFull(reader, payload); err != nil {
		return 0, nil, fmt.Errorf("reading frame payload: %w", err)
	}

	return opcode, payload, nil
}
