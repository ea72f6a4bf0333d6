package cuckoo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrCorrupt is returned by Load when the stream is inconsistent.
var ErrCorrupt = errors.New("cuckoo: corrupt stream")

const (
	maxLoadCount   = 1 << 40
	maxReserveHint = 1 << 22
)

// Reader is the input accepted by Load.
type Reader interface {
	io.Reader
	io.ByteReader
}

// Save writes the map as a count-prefixed stream: entry count, then every key
// followed by its encoded value.
//
// Parameters:
//   - w: Destination stream
//   - encode: Writes one value to w
//
// Returns:
//   - error: First write or encode error
func (m *Map[K, V]) Save(w io.Writer, encode func(io.Writer, *V) error) error {
	buf := make([]byte, 0, binary.MaxVarintLen64)
	buf = binary.AppendUvarint(buf, uint64(m.n))
	if _, err := w.Write(buf); err != nil {
		return err
	}

	var err error
	m.Range(func(k K, v *V) bool {
		buf = binary.AppendUvarint(buf[:0], uint64(k))
		if _, err = w.Write(buf); err != nil {
			return false
		}
		err = encode(w, v)

		return err == nil
	})

	return err
}

// Load replaces the map contents with a stream produced by Save.
//
// Parameters:
//   - r: Source stream
//   - decode: Reads one value from r
//
// Returns:
//   - error: ErrCorrupt on inconsistent input, or the first read/decode error
func (m *Map[K, V]) Load(r Reader, decode func(Reader) (V, error)) error {
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	if count > maxLoadCount {
		return fmt.Errorf("%w: entry count %d", ErrCorrupt, count)
	}

	m.Clear()
	m.Reserve(int(min(count, maxReserveHint)) * 3 / 2)

	for i := uint64(0); i < count; i++ {
		raw, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("read key %d: %w", i, err)
		}
		k := K(raw)
		if uint64(k) != raw {
			return fmt.Errorf("%w: bad key %d", ErrCorrupt, raw)
		}
		if m.Contains(k) {
			return fmt.Errorf("%w: duplicate key %d", ErrCorrupt, raw)
		}
		v, err := decode(r)
		if err != nil {
			return fmt.Errorf("decode value for key %d: %w", raw, err)
		}
		m.Set(k, v)
	}

	return nil
}
