package detect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreAppendAndLen(t *testing.T) {
	var s Store
	for i := 0; i < ChunkSize*2+3; i++ {
		s.Append(Record{Sid: Sid(i)})
	}
	require.Equal(t, ChunkSize*2+3, s.Len())
}

// TestStoreChunkInvariant is spec.md §8.2: walking chunks yields exactly
// cnt valid records and ceil(cnt / ChunkSize) chunks.
func TestStoreChunkInvariant(t *testing.T) {
	var cases = []int{0, 1, ChunkSize, ChunkSize + 1, ChunkSize*3 - 1}
	for _, n := range cases {
		var s Store
		for i := 0; i < n; i++ {
			s.Append(Record{Sid: Sid(i)})
		}

		var want = (n + ChunkSize - 1) / ChunkSize
		require.Equal(t, want, s.chunkCount(), "n=%d", n)

		var seen int
		s.Each(func(_ int, _ *Record) { seen++ })
		require.Equal(t, n, seen, "n=%d", n)
	}
}

func TestStoreFindAndAt(t *testing.T) {
	var s Store
	s.Append(Record{Sid: 10, Flags: flagFullInspect})
	s.Append(Record{Sid: 20})
	s.Append(Record{Sid: 30})

	var r = s.Find(20)
	require.NotNil(t, r)
	require.Equal(t, Sid(20), r.Sid)

	require.Nil(t, s.Find(99))

	r.Flags = r.Flags.withCantMatch()
	require.True(t, s.At(1).Flags.cantMatch())
}

func TestStoreEachMutatesInPlace(t *testing.T) {
	var s Store
	for i := 0; i < ChunkSize+1; i++ {
		s.Append(Record{Sid: Sid(i)})
	}
	s.Each(func(_ int, r *Record) { r.Flags = r.Flags.withFullInspect() })

	var all = true
	s.Each(func(_ int, r *Record) {
		if !r.Flags.fullInspect() {
			all = false
		}
	})
	require.True(t, all)
}
