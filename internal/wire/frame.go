package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameHeaderSize is the size in bytes of the wire record header
// (spec.md §6): {type u8, context_id u8, payload_len u16}.
const FrameHeaderSize = 4

// EncodeFrame writes the {type, context_id, payload_len, payload} header
// described in spec.md §6 for a raw payload already serialized by the
// caller. It returns an error if the tag is internal (internal messages
// never appear on the wire) or the payload exceeds the u16 length field.
func EncodeFrame(tag Tag, ctx ContextID, payload []byte) ([]byte, error) {
	if tag.IsInternal() {
		return nil, fmt.Errorf("wire: tag %d is internal and cannot be framed", tag)
	}
	if len(payload) > 0xFFFF {
		return nil, fmt.Errorf("wire: payload too large: %d bytes", len(payload))
	}

	buf := make([]byte, FrameHeaderSize+len(payload))
	buf[0] = byte(tag)
	buf[1] = byte(ctx)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	return buf, nil
}

// DecodeFrameHeader parses the fixed header and returns the tag,
// context id, and the declared payload length, without touching the
// payload bytes. The caller slices the remainder itself.
func DecodeFrameHeader(buf []byte) (tag Tag, ctx ContextID, payloadLen int, err error) {
	if len(buf) < FrameHeaderSize {
		return 0, 0, 0, fmt.Errorf("wire: frame too short: %d bytes", len(buf))
	}
	tag = Tag(buf[0])
	ctx = ContextID(buf[1])
	payloadLen = int(binary.BigEndian.Uint16(buf[2:4]))
	if FrameHeaderSize+payloadLen > len(buf) {
		return 0, 0, 0, fmt.Errorf("wire: declared payload length %d exceeds buffer", payloadLen)
	}
	return tag, ctx, payloadLen, nil
}
