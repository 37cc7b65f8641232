package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[string, int]()
	assert.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Keys())
}

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	r.Register("one", 1)
	r.Register("two", 2)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestRegisterKeepsPosition(t *testing.T) {
	r := New[string, string]()

	r.Register("a", "old")
	r.Register("b", "b")
	r.Register("a", "new")

	assert.Equal(t, []string{"a", "b"}, r.Keys())
	assert.Equal(t, []string{"new", "b"}, r.Values())
}

func TestAddRejectsDuplicate(t *testing.T) {
	r := New[string, int]()

	require.NoError(t, r.Add("tick", 1))
	err := r.Add("tick", 2)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "tick")
	assert.Equal(t, 1, r.MustGet("tick"))
}

func TestMustGetPanics(t *testing.T) {
	r := New[string, int]()
	assert.PanicsWithValue(t, "registry: key missing not found", func() {
		r.MustGet("missing")
	})
}

func TestDelete(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)
	r.Register("c", 3)

	assert.True(t, r.Delete("b"))
	assert.False(t, r.Delete("b"))
	assert.False(t, r.Has("b"))
	assert.Equal(t, []string{"a", "c"}, r.Keys())

	r.Register("b", 4)
	assert.Equal(t, []string{"a", "c", "b"}, r.Keys())
}

func TestRangeOrderAndStop(t *testing.T) {
	r := New[string, int]()
	for i, k := range []string{"z", "y", "x", "w"} {
		r.Register(k, i)
	}

	var seen []string
	r.Range(func(k string, _ int) bool {
		seen = append(seen, k)
		return len(seen) < 3
	})
	assert.Equal(t, []string{"z", "y", "x"}, seen)
}

func TestRangeAllowsMutation(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", -1)

	count := 0
	r.Range(func(k string, v int) bool {
		count++
		if v < 0 {
			r.Delete(k)
		}
		r.Register(k+"-copy", v)
		return true
	})

	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"a", "a-copy", "b-copy"}, r.Keys())
}

func TestConcurrentRegister(t *testing.T) {
	r := New[string, int]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("k%d", i), i)
			_, _ = r.Get("k0")
			_ = r.Keys()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
	assert.Len(t, r.Keys(), 100)
}
