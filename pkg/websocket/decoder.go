package websocket

import (
	"encoding/binary"

	"netcore/pkg/buffer"
)

// Decoder incrementally assembles WebSocket frames out of bytes delivered
// by a transport.Session's OnReceived callback. Feed never blocks: it
// appends whatever arrived, and TryDecode reports whether a full frame is
// now available, so the caller's read loop simply calls TryDecode in a
// loop after every Feed until it returns false.
type Decoder struct {
	buf *buffer.Buffer
}

// NewDecoder creates an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{buf: buffer.New(4096)}
}

// Feed appends newly received bytes.
func (d *Decoder) Feed(data []byte) {
	d.buf.Append(data)
}

// Pending returns how many additional bytes TryDecode needs before the
// frame currently being assembled can complete, or 0 while the header
// bytes that carry the payload length (2, 4 or 10 of them) are still
// incomplete. Once a whole frame is buffered the result is 0, or negative
// if bytes of a following frame are buffered too.
func (d *Decoder) Pending() int {
	span := d.buf.AsReadOnlySpan()
	need, ok := frameSize(span)
	if !ok {
		return 0
	}
	return need - len(span)
}

// TryDecode attempts to parse one frame from the buffered bytes. It
// returns (frame, true, nil) and discards the consumed bytes on success,
// or (nil, false, nil) if more data is needed. A malformed frame (bad
// opcode, oversized control frame, reserved bits set) is reported as an
// error; the caller should treat that as fatal for the connection.
func (d *Decoder) TryDecode() (*Frame, bool, error) {
	span := d.buf.AsReadOnlySpan()
	total, ok := frameSize(span)
	if !ok || len(span) < total {
		return nil, false, nil
	}

	frame, err := decodeFrame(span[:total])
	d.buf.Discard(total)
	if err != nil {
		return nil, false, err
	}
	return frame, true, nil
}

// Validate checks f against the structural rules RFC 6455 places on a
// single frame, stopping at the first violation: a recognized opcode, no
// reserved bits, an unfragmented control frame within the 125-byte
// control payload ceiling, and a data payload within MaxFramePayloadSize.
func (f *Frame) Validate() error {
	control := f.Opcode == OpcodeClose || f.Opcode == OpcodePing || f.Opcode == OpcodePong
	known := control || f.Opcode == OpcodeContinuation || f.Opcode == OpcodeText || f.Opcode == OpcodeBinary

	switch {
	case !known:
		return &FrameError{Err: ErrInvalidOpcode, Opcode: f.Opcode}
	case f.RSV1 || f.RSV2 || f.RSV3:
		return &FrameError{Err: ErrReservedBitsSet, Opcode: f.Opcode}
	case control && !f.Fin:
		return &FrameError{Err: ErrFragmentedControl, Opcode: f.Opcode}
	case control && len(f.Payload) > MaxControlPayloadSize:
		return &FrameError{Err: ErrControlFrameTooLong, Opcode: f.Opcode}
	case len(f.Payload) > MaxFramePayloadSize:
		return &FrameError{Err: ErrFrameTooLarge, Opcode: f.Opcode}
	default:
		return nil
	}
}

// frameSize computes the total byte length of the frame starting at the
// front of span (header + extended length + mask + payload), reporting
// false if span doesn't yet contain enough bytes to know that length.
func frameSize(span []byte) (int, bool) {
	if len(span) < 2 {
		return 0, false
	}
	masked := span[1]&0x80 != 0
	lenField := int(span[1] & 0x7F)

	headerLen := 2
	var payloadLen uint64
	switch {
	case lenField < 126:
		payloadLen = uint64(lenField)
	case lenField == 126:
		if len(span) < 4 {
			return 0, false
		}
		payloadLen = uint64(binary.BigEndian.Uint16(span[2:4]))
		headerLen = 4
	default: // 127
		if len(span) < 10 {
			return 0, false
		}
		payloadLen = binary.BigEndian.Uint64(span[2:10])
		headerLen = 10
	}

	if masked {
		headerLen += 4
	}
	if payloadLen > MaxFramePayloadSize {
		// report complete-enough-to-reject: the caller's decodeFrame call
		// will surface ErrFrameTooLarge once headerLen bytes are in.
		return headerLen, true
	}
	return headerLen + int(payloadLen), true
}

func decodeFrame(b []byte) (*Frame, error) {
	frame := &Frame{}
	frame.Fin = b[0]&0x80 != 0
	frame.RSV1 = b[0]&0x40 != 0
	frame.RSV2 = b[0]&0x20 != 0
	frame.RSV3 = b[0]&0x10 != 0
	frame.Opcode = Opcode(b[0] & 0x0F)

	frame.Masked = b[1]&0x80 != 0
	lenField := int(b[1] & 0x7F)

	pos := 2
	var payloadLen uint64
	switch {
	case lenField < 126:
		payloadLen = uint64(lenField)
	case lenField == 126:
		payloadLen = uint64(binary.BigEndian.Uint16(b[pos : pos+2]))
		pos += 2
	default:
		payloadLen = binary.BigEndian.Uint64(b[pos : pos+8])
		pos += 8
	}

	if payloadLen > MaxFramePayloadSize {
		return nil, &FrameError{Err: ErrFrameTooLarge, Opcode: frame.Opcode}
	}

	if frame.Masked {
		copy(frame.Mask[:], b[pos:pos+4])
		pos += 4
	}

	if payloadLen > 0 {
		frame.Payload = make([]byte, payloadLen)
		copy(frame.Payload, b[pos:pos+int(payloadLen)])
		if frame.Masked {
			frame.unmask()
		}
	}

	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}
