package journal_test

import (
	"sync"
	"testing"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Len(t *testing.T) {
	store := journal.NewMemoryStore()
	defer store.Close()

	assert.Equal(t, 0, store.Len())

	_, err := store.Append(record("run-1", "tick", 0, 0))
	require.NoError(t, err)
	_, err = store.Append(record("run-2", "tick", 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.DeleteRun("run-1"))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ListIsCopy(t *testing.T) {
	store := journal.NewMemoryStore()
	defer store.Close()

	_, err := store.Append(record("run-1", "tick", 0, 0))
	require.NoError(t, err)

	records, err := store.List("run-1")
	require.NoError(t, err)
	records[0].Event = "mutated"

	records, err = store.List("run-1")
	require.NoError(t, err)
	assert.Equal(t, "tick", records[0].Event)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := journal.NewMemoryStore()
	defer store.Close()

	const numGoroutines = 50
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			_, _ = store.Append(record("run-1", "tick", 0, 0))
			_, _ = store.List("run-1")
		}()
	}
	wg.Wait()

	records, err := store.List("run-1")
	require.NoError(t, err)
	require.Len(t, records, numGoroutines)
	for i, rec := range records {
		assert.Equal(t, int64(i+1), rec.Sequence)
	}
}
