package websocket

import (
	"crypto/rand"
	"encoding/binary"
)

// EncodeFrame renders frame as wire bytes, generating a fresh random mask
// whenever frame.Masked is set (client-to-server frames must be masked
// per RFC 6455 section 5.1; server-to-client frames normally aren't).
func EncodeFrame(frame *Frame) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	headerSize := 2
	payloadLen := len(frame.Payload)
	switch {
	case payloadLen > 65535:
		headerSize += 8
	case payloadLen > 125:
		headerSize += 2
	}

	var mask [4]byte
	if frame.Masked {
		rand.Read(mask[:])
		headerSize += 4
	}

	buf := make([]byte, headerSize+payloadLen)
	pos := 0

	buf[pos] = 0x00
	if frame.Fin {
		buf[pos] |= 0x80
	}
	if frame.RSV1 {
		buf[pos] |= 0x40
	}
	if frame.RSV2 {
		buf[pos] |= 0x20
	}
	if frame.RSV3 {
		buf[pos] |= 0x10
	}
	buf[pos] |= byte(frame.Opcode & 0x0F)
	pos++

	buf[pos] = 0x00
	if frame.Masked {
		buf[pos] |= 0x80
	}
	switch {
	case payloadLen <= 125:
		buf[pos] |= byte(payloadLen)
		pos++
	case payloadLen <= 65535:
		buf[pos] |= 126
		pos++
		binary.BigEndian.PutUint16(buf[pos:pos+2], uint16(payloadLen))
		pos += 2
	default:
		buf[pos] |= 127
		pos++
		binary.BigEndian.PutUint64(buf[pos:pos+8], uint64(payloadLen))
		pos += 8
	}

	if frame.Masked {
		copy(buf[pos:pos+4], mask[:])
		pos += 4
	}

	if payloadLen > 0 {
		copy(buf[pos:], frame.Payload)
		if frame.Masked {
			for i := 0; i < payloadLen; i++ {
				buf[pos+i] ^= mask[i%4]
			}
		}
	}

	return buf, nil
}

// EncodeMessage splits payload into frames of at most maxFragmentSize
// bytes (the first carrying opcode, the rest OpcodeContinuation) and
// encodes each, for callers that want to bound per-frame size.
func EncodeMessage(opcode Opcode, payload []byte, masked bool, maxFragmentSize int) ([][]byte, error) {
	if maxFragmentSize <= 0 || len(payload) <= maxFragmentSize {
		b, err := EncodeFrame(&Frame{Fin: true, Opcode: opcode, Masked: masked, Payload: payload})
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil
	}

	var frames [][]byte
	pos, remaining := 0, len(payload)
	first := true
	for remaining > 0 {
		chunk := maxFragmentSize
		if remaining < chunk {
			chunk = remaining
		}
		op := OpcodeContinuation
		if first {
			op = opcode
			first = false
		}
		b, err := EncodeFrame(&Frame{
			Fin:     chunk == remaining,
			Opcode:  op,
			Masked:  masked,
			Payload: payload[pos : pos+chunk],
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, b)
		pos += chunk
		remaining -= chunk
	}
	return frames, nil
}

// EncodeClose builds a close frame's payload (2-byte status code plus an
// optional reason) and encodes it.
func EncodeClose(code uint16, reason string, masked bool) ([]byte, error) {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload[:2], code)
	copy(payload[2:], reason)
	return EncodeFrame(&Frame{Fin: true, Opcode: OpcodeClose, Masked: masked, Payload: payload})
}

// EncodePing builds and encodes a ping frame.
func EncodePing(payload []byte, masked bool) ([]byte, error) {
	if len(payload) > MaxControlPayloadSize {
		return nil, &FrameError{Err: ErrControlFrameTooLong, Opcode: OpcodePing}
	}
	return EncodeFrame(&Frame{Fin: true, Opcode: OpcodePing, Masked: masked, Payload: payload})
}

// EncodePong builds and encodes a pong frame.
func EncodePong(payload []byte, masked bool) ([]byte, error) {
	if len(payload) > MaxControlPayloadSize {
		return nil, &FrameError{Err: ErrControlFrameTooLong, Opcode: OpcodePong}
	}
	return EncodeFrame(&Frame{Fin: true, Opcode: OpcodePong, Masked: masked, Payload: payload})
}
