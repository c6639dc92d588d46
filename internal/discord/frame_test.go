// Tests for [EncodeFrame], [DecodeHeader] and [DecodeFrame] covering header
// layout, size limits, partial reads and sequential frames.
package discord

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"
)

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

func mustEncodeFrame(t *testing.T, opcode Opcode, payload []byte) []byte {
	t.Helper()
	frame, err := EncodeFrame(opcode, payload)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	return frame
}

// headerOf copies the first HeaderSize bytes of frame into an array.
func headerOf(frame []byte) [HeaderSize]byte {
	var h [HeaderSize]byte
	copy(h[:], frame[:HeaderSize])
	return h
}

// slowReader returns data one byte at a time, simulating partial reads.
type slowReader struct {
	data []byte
	pos  int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

// ///////////////////////////////////////////////
// EncodeFrame
// ///////////////////////////////////////////////

func TestEncodeFrame(t *testing.T) {
	payload := []byte(`{"v":1,"client_id":"1041018234058571847"}`)
	frame := mustEncodeFrame(t, OpHandshake, payload)

	if len(frame) != HeaderSize+len(payload) {
		t.Fatalf("expected frame length %d, got %d", HeaderSize+len(payload), len(frame))
	}
	if op := Opcode(binary.LittleEndian.Uint32(frame[0:4])); op != OpHandshake {
		t.Fatalf("expected opcode %d, got %d", OpHandshake, op)
	}
	if n := binary.LittleEndian.Uint32(frame[4:8]); n != uint32(len(payload)) {
		t.Fatalf("expected length %d, got %d", len(payload), n)
	}
	if !bytes.Equal(frame[HeaderSize:], payload) {
		t.Fatalf("payload mismatch: expected %q, got %q", payload, frame[HeaderSize:])
	}
}

func TestEncodeFrame_ExactMax(t *testing.T) {
	if _, err := EncodeFrame(OpFrame, make([]byte, MaxPayloadSize)); err != nil {
		t.Fatalf("expected no error for exactly MaxPayloadSize, got: %v", err)
	}
}

func TestEncodeFrame_Oversized(t *testing.T) {
	for _, size := range []int{MaxPayloadSize + 1, MaxPayloadSize + 100, 1 << 20} {
		frame, err := EncodeFrame(OpFrame, make([]byte, size))
		if !errors.Is(err, ErrPayloadTooLarge) {
			t.Fatalf("size %d: expected ErrPayloadTooLarge, got: %v", size, err)
		}
		if frame != nil {
			t.Fatalf("size %d: expected no frame bytes, got %d", size, len(frame))
		}
	}
}

func TestEncodeFrame_EmptyPayload(t *testing.T) {
	frame := mustEncodeFrame(t, OpFrame, nil)
	if len(frame) != HeaderSize {
		t.Fatalf("expected frame length %d, got %d", HeaderSize, len(frame))
	}
}

// ///////////////////////////////////////////////
// DecodeHeader
// ///////////////////////////////////////////////

func TestDecodeHeader_InvertsEncode(t *testing.T) {
	sizes := []int{0, 1, 27, 1024, MaxPayloadSize - 1, MaxPayloadSize}
	for _, op := range []Opcode{OpHandshake, OpFrame, OpClose} {
		for _, size := range sizes {
			t.Run(fmt.Sprintf("%s_%d", op, size), func(t *testing.T) {
				frame := mustEncodeFrame(t, op, bytes.Repeat([]byte{'x'}, size))
				gotOp, gotLen, err := DecodeHeader(headerOf(frame))
				if err != nil {
					t.Fatalf("DecodeHeader: %v", err)
				}
				if gotOp != op || gotLen != uint32(size) {
					t.Fatalf("DecodeHeader = (%s, %d), want (%s, %d)", gotOp, gotLen, op, size)
				}
			})
		}
	}
}

func TestDecodeHeader_Oversized(t *testing.T) {
	var h [HeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(OpFrame))
	binary.LittleEndian.PutUint32(h[4:8], MaxPayloadSize+1)

	_, n, err := DecodeHeader(h)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got: %v", err)
	}
	if n != MaxPayloadSize+1 {
		t.Fatalf("expected advertised length to be reported, got %d", n)
	}
}

// ///////////////////////////////////////////////
// DecodeFrame
// ///////////////////////////////////////////////

func TestDecodeFrame(t *testing.T) {
	original := []byte(`{"cmd":"SET_ACTIVITY","args":{}}`)
	opcode, payload, err := DecodeFrame(bytes.NewReader(mustEncodeFrame(t, OpFrame, original)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opcode != OpFrame {
		t.Fatalf("expected opcode %d, got %d", OpFrame, opcode)
	}
	if !bytes.Equal(payload, original) {
		t.Fatalf("payload mismatch: expected %q, got %q", original, payload)
	}
}

func TestDecodeFrame_Partial(t *testing.T) {
	original := []byte(`{"hello":"world"}`)
	reader := &slowReader{data: mustEncodeFrame(t, OpHandshake, original)}

	opcode, payload, err := DecodeFrame(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opcode != OpHandshake || !bytes.Equal(payload, original) {
		t.Fatalf("got (%s, %q), want (%s, %q)", opcode, payload, OpHandshake, original)
	}
}

func TestDecodeFrame_Multiple(t *testing.T) {
	var buf bytes.Buffer
	frames := []struct {
		opcode  Opcode
		payload []byte
	}{
		{OpHandshake, []byte(`{"v":1}`)},
		{OpFrame, []byte(`{"cmd":"SET_ACTIVITY"}`)},
		{OpClose, []byte(`{"code":4000}`)},
	}
	for _, f := range frames {
		buf.Write(mustEncodeFrame(t, f.opcode, f.payload))
	}

	for i, want := range frames {
		opcode, payload, err := DecodeFrame(&buf)
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if opcode != want.opcode || !bytes.Equal(payload, want.payload) {
			t.Fatalf("frame %d: got (%s, %q), want (%s, %q)", i, opcode, payload, want.opcode, want.payload)
		}
	}
}

func TestDecodeFrame_OversizedDoesNotRead(t *testing.T) {
	var h [HeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(OpFrame))
	binary.LittleEndian.PutUint32(h[4:8], MaxPayloadSize+1)
	r := bytes.NewReader(append(h[:], []byte("trailing")...))

	if _, _, err := DecodeFrame(r); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got: %v", err)
	}
	if r.Len() != len("trailing") {
		t.Fatalf("expected payload bytes to be left unread, %d remain", r.Len())
	}
}

func TestDecodeFrame_Truncated(t *testing.T) {
	if _, _, err := DecodeFrame(bytes.NewReader([]byte{0, 0, 0, 0})); err == nil {
		t.Fatal("expected error for truncated header")
	}

	var h [HeaderSize]byte
	binary.LittleEndian.PutUint32(h[4:8], 100)
	if _, _, err := DecodeFrame(bytes.NewReader(append(h[:], "short"...))); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestOpcode_String(t *testing.T) {
	if OpPing.String() != "PING" {
		t.Fatalf("OpPing.String() = %q", OpPing.String())
	}
	if got := Opcode(9).String(); got != "OPCODE(9)" {
		t.Fatalf("Opcode(9).String() = %q", got)
	}
}
