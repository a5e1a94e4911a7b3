package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("rec:1", record{Name: "a", Count: 1}))

	var got record
	require.NoError(t, s.Get("rec:1", &got))
	assert.Equal(t, record{Name: "a", Count: 1}, got)

	require.NoError(t, s.Delete("rec:1"))
	err := s.Get("rec:1", &got)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_Scan(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("rec:1", record{Name: "a"}))
	require.NoError(t, s.Set("rec:2", record{Name: "b"}))
	require.NoError(t, s.Set("other:1", record{Name: "c"}))

	var names []string
	err := s.Scan("rec:", func(key string, data []byte) error {
		names = append(names, key+"="+string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.Contains(t, names[0], `rec:1={"name":"a"`)
	assert.Contains(t, names[1], "rec:2=")
}

func TestStore_UpdateIsAtomic(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("rec:1", record{Name: "a"}))

	boom := errors.New("boom")
	err := s.Update(func(tx *Tx) error {
		require.NoError(t, tx.Set("rec:1", record{Name: "changed"}))
		require.NoError(t, tx.Set("rec:2", record{Name: "new"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var got record
	require.NoError(t, s.Get("rec:1", &got))
	assert.Equal(t, "a", got.Name)
	assert.ErrorIs(t, s.Get("rec:2", &got), ErrNotFound)
}

func TestStore_NextIDIsUniqueUnderConcurrency(t *testing.T) {
	s := newTestStore(t)

	const n = 20
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.NextID("seq:test")
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.NotEmpty(t, seen)
	assert.Equal(t, "42", FormatID(42))
}
