package replica

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/edgeshard/internal/cuckoo"
	"github.com/arloliu/edgeshard/types"
	"github.com/bits-and-blooms/bitset"
	"github.com/klauspost/compress/zstd"
)

const snapshotVersion = 1

// ErrSnapshotVersion is returned when a snapshot was written by an unknown format version.
var ErrSnapshotVersion = errors.New("replica: unsupported snapshot version")

// WriteSnapshot writes every stripe's maps to w as one zstd-compressed stream.
//
// Stripes are locked one at a time, so a snapshot taken during ingest is
// consistent per stripe only.
//
// Parameters:
//   - w: Destination stream
//
// Returns:
//   - error: Compression or write error
func (t *Table) WriteSnapshot(w io.Writer) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}

	bw := bufio.NewWriter(enc)
	if err := t.writeStripes(bw); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}

	return enc.Close()
}

func (t *Table) writeStripes(w io.Writer) error {
	var hdr []byte
	hdr = binary.AppendUvarint(hdr, snapshotVersion)
	hdr = binary.AppendUvarint(hdr, uint64(len(t.stripes)))
	if t.degrees {
		hdr = append(hdr, 1)
	} else {
		hdr = append(hdr, 0)
	}
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	for i, s := range t.stripes {
		s.mu.Lock()
		err := s.replicas.Save(w, writeBitSet)
		if err == nil && s.degrees != nil {
			err = s.degrees.Save(w, writeUvarint)
		}
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("write stripe %d: %w", i, err)
		}
	}

	return nil
}

// ReadSnapshot merges a stream written by WriteSnapshot into the table.
//
// The stripe count of the writer does not need to match: entries are
// redistributed by vertex. Degrees are dropped when this table does not track
// them and left at zero when the snapshot has none.
//
// Parameters:
//   - r: Source stream
//
// Returns:
//   - error: Decompression, format or read error
func (t *Table) ReadSnapshot(r io.Reader) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReader(dec)

	version, err := binary.ReadUvarint(br)
	if err != nil {
		return fmt.Errorf("read snapshot version: %w", err)
	}
	if version != snapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, version)
	}
	stripes, err := binary.ReadUvarint(br)
	if err != nil {
		return fmt.Errorf("read stripe count: %w", err)
	}
	flag, err := br.ReadByte()
	if err != nil {
		return fmt.Errorf("read degree flag: %w", err)
	}
	hasDegrees := flag == 1

	for i := uint64(0); i < stripes; i++ {
		reps := cuckoo.New[types.VertexID, bitset.BitSet]()
		if err := reps.Load(br, readBitSet); err != nil {
			return fmt.Errorf("read stripe %d replicas: %w", i, err)
		}
		reps.Range(func(v types.VertexID, b *bitset.BitSet) bool {
			t.set(v, func(s *stripe) { *s.replicas.Ref(v) = *b })
			return true
		})

		if !hasDegrees {
			continue
		}
		degs := cuckoo.New[types.VertexID, uint64]()
		if err := degs.Load(br, readUvarint); err != nil {
			return fmt.Errorf("read stripe %d degrees: %w", i, err)
		}
		if !t.degrees {
			continue
		}
		degs.Range(func(v types.VertexID, d *uint64) bool {
			t.set(v, func(s *stripe) { *s.degrees.Ref(v) = *d })
			return true
		})
	}

	return nil
}

func (t *Table) set(v types.VertexID, fn func(*stripe)) {
	s := t.stripes[t.stripeIndex(v)]
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

func writeBitSet(w io.Writer, b *bitset.BitSet) error {
	words := b.Bytes()
	buf := make([]byte, 0, binary.MaxVarintLen64+8*len(words))
	buf = binary.AppendUvarint(buf, uint64(len(words)))
	for _, word := range words {
		buf = binary.LittleEndian.AppendUint64(buf, word)
	}
	_, err := w.Write(buf)

	return err
}

func readBitSet(r cuckoo.Reader) (bitset.BitSet, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return bitset.BitSet{}, err
	}
	if n > 1<<20 {
		return bitset.BitSet{}, fmt.Errorf("%w: bit vector of %d words", cuckoo.ErrCorrupt, n)
	}

	buf := make([]byte, 8*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return bitset.BitSet{}, err
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[8*i:])
	}

	return *bitset.From(words), nil
}

func writeUvarint(w io.Writer, v *uint64) error {
	_, err := w.Write(binary.AppendUvarint(nil, *v))
	return err
}

func readUvarint(r cuckoo.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}
