package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStoreBasic(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Set([]byte("a"), []byte("1")))
	require.NoError(t, s.Set([]byte("b"), []byte("2")))
	require.NoError(t, s.Set([]byte("a"), []byte("3")))

	v, ok, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("3"), v)

	require.NoError(t, s.Delete([]byte("a")))
	_, ok, err = s.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, s.Len())
}

func TestMemStoreScan(t *testing.T) {
	s := NewMemStore()
	for _, k := range []string{"p/a", "p/b", "p/c", "q/a"} {
		require.NoError(t, s.Set([]byte(k), nil))
	}

	var keys []string
	collect := func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}

	require.NoError(t, s.Scan([]byte("p/"), PrefixEnd([]byte("p/")), false, collect))
	require.Equal(t, []string{"p/a", "p/b", "p/c"}, keys)

	keys = nil
	require.NoError(t, s.Scan([]byte("p/"), PrefixEnd([]byte("p/")), true, collect))
	require.Equal(t, []string{"p/c", "p/b", "p/a"}, keys)

	// Early stop.
	keys = nil
	require.NoError(t, s.Scan([]byte("p/"), nil, false, func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return len(keys) < 2
	}))
	require.Equal(t, []string{"p/a", "p/b"}, keys)
}

func TestPrefixEnd(t *testing.T) {
	require.Equal(t, []byte{0x01, 0x03}, PrefixEnd([]byte{0x01, 0x02}))
	require.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xff}))
	require.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
}
