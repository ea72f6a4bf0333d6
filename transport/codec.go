package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/edgeshard/types"
)

// Kind tags a wire message.
type Kind byte

const (
	// KindEdge carries one edge record.
	KindEdge Kind = 1

	// KindEndOfStream tells the receiver that a sender has flushed.
	// The sender's ProcID travels in the source field.
	KindEndOfStream Kind = 2
)

// headerSize is kind + source + target.
const headerSize = 1 + 8 + 8

// Message is a decoded wire message.
type Message struct {
	Kind Kind

	// Record is set for KindEdge. Record.Data aliases the decoded buffer.
	Record types.EdgeRecord

	// From is set for KindEndOfStream.
	From types.ProcID
}

// EncodeRecord appends the wire form of rec to dst.
//
// Layout: 1-byte kind, 8-byte little-endian source, 8-byte little-endian
// target, uvarint data length, data.
//
// Parameters:
//   - dst: Buffer to append to, may be nil
//   - rec: Edge record to encode
//
// Returns:
//   - []byte: The extended buffer
func EncodeRecord(dst []byte, rec types.EdgeRecord) []byte {
	dst = append(dst, byte(KindEdge))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(rec.Source))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(rec.Target))
	dst = binary.AppendUvarint(dst, uint64(len(rec.Data)))

	return append(dst, rec.Data...)
}

// EncodeEndOfStream appends an end-of-stream marker from machine from to dst.
func EncodeEndOfStream(dst []byte, from types.ProcID) []byte {
	dst = append(dst, byte(KindEndOfStream))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(from))
	dst = binary.LittleEndian.AppendUint64(dst, 0)

	return binary.AppendUvarint(dst, 0)
}

// DecodeMessage parses one wire message.
//
// Parameters:
//   - b: Encoded message; Record.Data of the result aliases it
//
// Returns:
//   - Message: Decoded message
//   - error: ErrMalformedRecord-wrapped error on truncated or unknown input
func DecodeMessage(b []byte) (Message, error) {
	if len(b) < headerSize {
		return Message{}, fmt.Errorf("%w: %d bytes, need at least %d", types.ErrMalformedRecord, len(b), headerSize)
	}

	kind := Kind(b[0])
	src := binary.LittleEndian.Uint64(b[1:9])
	dst := binary.LittleEndian.Uint64(b[9:17])

	size, n := binary.Uvarint(b[headerSize:])
	if n <= 0 {
		return Message{}, fmt.Errorf("%w: bad data length", types.ErrMalformedRecord)
	}
	body := b[headerSize+n:]
	if uint64(len(body)) != size {
		return Message{}, fmt.Errorf("%w: data length %d, have %d bytes", types.ErrMalformedRecord, size, len(body))
	}

	switch kind {
	case KindEdge:
		rec := types.EdgeRecord{Source: types.VertexID(src), Target: types.VertexID(dst)}
		if size > 0 {
			rec.Data = body
		}

		return Message{Kind: kind, Record: rec}, nil
	case KindEndOfStream:
		if src >= uint64(types.InvalidProcID) || size != 0 {
			return Message{}, fmt.Errorf("%w: bad end-of-stream marker", types.ErrMalformedRecord)
		}

		return Message{Kind: kind, From: types.ProcID(src)}, nil
	default:
		return Message{}, fmt.Errorf("%w: unknown kind %d", types.ErrMalformedRecord, kind)
	}
}
