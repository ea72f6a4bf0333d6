package cuckoo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New[uint64, int]()

	require.Equal(t, 0, m.Len())
	require.Equal(t, DefaultInitialCapacity, m.Cap())
	require.Equal(t, 0, m.StashLen())
	require.Zero(t, m.LoadFactor())
}

func TestNew_RoundsCapacity(t *testing.T) {
	require.Equal(t, 256, New[uint64, int](WithInitialCapacity(200)).Cap())
	require.Equal(t, minCapacity, New[uint64, int](WithInitialCapacity(1)).Cap())
}

func TestMap_Ref(t *testing.T) {
	t.Run("inserts zero value on miss", func(t *testing.T) {
		m := New[uint64, int]()

		p := m.Ref(42)
		require.NotNil(t, p)
		require.Equal(t, 0, *p)
		require.Equal(t, 1, m.Len())
		require.True(t, m.Contains(42))
	})

	t.Run("returns same entry on hit", func(t *testing.T) {
		m := New[uint64, int]()

		*m.Ref(7) = 3
		*m.Ref(7) += 4

		v, ok := m.Get(7)
		require.True(t, ok)
		require.Equal(t, 7, v)
		require.Equal(t, 1, m.Len())
	})

	t.Run("zero and max keys are storable", func(t *testing.T) {
		m := New[uint64, int]()

		m.Set(0, 1)
		m.Set(1<<64-1, 2)

		v, ok := m.Get(0)
		require.True(t, ok)
		require.Equal(t, 1, v)
		v, ok = m.Get(1<<64 - 1)
		require.True(t, ok)
		require.Equal(t, 2, v)
		require.Equal(t, 2, m.Len())
	})

	t.Run("zero key is absent until inserted", func(t *testing.T) {
		m := New[uint32, int]()

		require.False(t, m.Contains(0))
		_, ok := m.Get(0)
		require.False(t, ok)
		require.False(t, m.Erase(0))
	})
}

func TestMap_RoundTrip(t *testing.T) {
	m := New[uint64, uint64](WithSeed(1))

	const n = 10000
	for i := range uint64(n) {
		m.Set(i*7919, i)
	}

	require.Equal(t, n, m.Len())
	for i := range uint64(n) {
		v, ok := m.Get(i * 7919)
		require.True(t, ok, "key %d missing", i*7919)
		require.Equal(t, i, v)
	}

	_, ok := m.Get(1)
	require.False(t, ok)
	require.Greater(t, m.Resizes(), 0)
	require.Greater(t, m.LoadFactor(), 0.0)
	require.LessOrEqual(t, m.LoadFactor(), 1.0)
}

func TestMap_Erase(t *testing.T) {
	m := New[uint64, string]()
	m.Set(1, "a")
	m.Set(2, "b")

	require.True(t, m.Erase(1))
	require.False(t, m.Erase(1))
	require.False(t, m.Contains(1))
	require.True(t, m.Contains(2))
	require.Equal(t, 1, m.Len())
}

func TestMap_RehashPreservesEntries(t *testing.T) {
	// A tiny walk bound and no stash slack force frequent resizes.
	m := New[uint64, uint64](
		WithInitialCapacity(8),
		WithMaxStash(0),
		WithMaxDisplacements(1),
		WithSeed(99),
	)

	want := make(map[uint64]uint64)
	for i := range uint64(2000) {
		k := i*2654435761 + 3
		m.Set(k, i)
		want[k] = i
	}

	require.Greater(t, m.Resizes(), 0)
	require.Len(t, want, m.Len())
	for k, v := range want {
		got, ok := m.Get(k)
		require.True(t, ok, "key %d lost across rehash", k)
		require.Equal(t, v, got)
	}

	seen := 0
	m.Range(func(k uint64, v *uint64) bool {
		require.Equal(t, want[k], *v)
		seen++

		return true
	})
	require.Equal(t, len(want), seen)
}

func TestMap_Clear(t *testing.T) {
	m := New[uint64, int]()
	for i := range uint64(1000) {
		m.Set(i, int(i))
	}
	require.Greater(t, m.Cap(), DefaultInitialCapacity)

	m.Clear()

	require.Equal(t, 0, m.Len())
	require.Equal(t, DefaultInitialCapacity, m.Cap())
	require.Equal(t, 0, m.StashLen())
	require.False(t, m.Contains(5))
}

func TestMap_RangeStops(t *testing.T) {
	m := New[uint64, int]()
	for i := range uint64(10) {
		m.Set(i, 0)
	}

	calls := 0
	m.Range(func(uint64, *int) bool {
		calls++
		return calls < 3
	})
	require.Equal(t, 3, calls)
}

func TestMap_Deterministic(t *testing.T) {
	build := func() *Map[uint64, int] {
		m := New[uint64, int](WithSeed(7), WithInitialCapacity(8), WithMaxStash(1))
		for i := range uint64(500) {
			m.Set(i*31, int(i))
		}

		return m
	}

	a, b := build(), build()
	require.Equal(t, a.Cap(), b.Cap())
	require.Equal(t, a.Resizes(), b.Resizes())
	require.Equal(t, a.slots, b.slots)
}

func encodeUint64(w io.Writer, v *uint64) error {
	_, err := w.Write(binary.AppendUvarint(nil, *v))
	return err
}

func decodeUint64(r Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func TestMap_SaveLoad(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		src := New[uint64, uint64]()
		for i := range uint64(3000) {
			src.Set(i*13+1, i*i)
		}

		var buf bytes.Buffer
		require.NoError(t, src.Save(&buf, encodeUint64))

		dst := New[uint64, uint64]()
		dst.Set(999999999, 1)
		require.NoError(t, dst.Load(&buf, decodeUint64))

		require.Equal(t, src.Len(), dst.Len())
		require.False(t, dst.Contains(999999999))
		src.Range(func(k uint64, v *uint64) bool {
			got, ok := dst.Get(k)
			require.True(t, ok)
			require.Equal(t, *v, got)

			return true
		})
	})

	t.Run("uint32 keys", func(t *testing.T) {
		src := New[uint32, uint64]()
		src.Set(0, 3)
		src.Set(1<<32-1, 9)

		var buf bytes.Buffer
		require.NoError(t, src.Save(&buf, encodeUint64))

		dst := New[uint32, uint64]()
		require.NoError(t, dst.Load(&buf, decodeUint64))
		v, ok := dst.Get(1<<32 - 1)
		require.True(t, ok)
		require.Equal(t, uint64(9), v)
		v, ok = dst.Get(0)
		require.True(t, ok)
		require.Equal(t, uint64(3), v)
	})

	t.Run("key overflows key type", func(t *testing.T) {
		var buf bytes.Buffer
		buf.Write(binary.AppendUvarint(nil, 1))
		buf.Write(binary.AppendUvarint(nil, 1<<40))
		buf.Write(binary.AppendUvarint(nil, 0))

		err := New[uint32, uint64]().Load(&buf, decodeUint64)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("empty map", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, New[uint64, uint64]().Save(&buf, encodeUint64))

		dst := New[uint64, uint64]()
		require.NoError(t, dst.Load(&buf, decodeUint64))
		require.Equal(t, 0, dst.Len())
	})

	t.Run("truncated stream", func(t *testing.T) {
		src := New[uint64, uint64]()
		src.Set(1, 1)
		src.Set(2, 2)

		var buf bytes.Buffer
		require.NoError(t, src.Save(&buf, encodeUint64))
		data := buf.Bytes()[:buf.Len()-1]

		err := New[uint64, uint64]().Load(bytes.NewReader(data), decodeUint64)
		require.Error(t, err)
	})

	t.Run("duplicate key", func(t *testing.T) {
		var buf bytes.Buffer
		buf.Write(binary.AppendUvarint(nil, 2))
		buf.Write(binary.AppendUvarint(nil, 5))
		buf.Write(binary.AppendUvarint(nil, 0))
		buf.Write(binary.AppendUvarint(nil, 5))
		buf.Write(binary.AppendUvarint(nil, 0))

		err := New[uint64, uint64]().Load(&buf, decodeUint64)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("propagates encode error", func(t *testing.T) {
		src := New[uint64, uint64]()
		src.Set(1, 1)
		boom := errors.New("boom")

		err := src.Save(io.Discard, func(io.Writer, *uint64) error { return boom })
		require.ErrorIs(t, err, boom)
	})
}

func BenchmarkMap_Ref(b *testing.B) {
	m := New[uint64, uint64]()
	var k uint64
	for b.Loop() {
		*m.Ref(k & 0xFFFFF)++
		k++
	}
}
