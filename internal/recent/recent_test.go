// ABOUTME: Tests for recent value merging and the badger store.
// ABOUTME: The store runs in memory so tests leave nothing on disk.
package recent

import (
	"testing"

	"github.com/harperreed/tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coded(code string, value float64) CodedValue {
	return CodedValue{Value: value, Code: models.Code{System: "veg", Code: code, Display: code}}
}

func codes(values []CodedValue) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Code.Code
	}
	return out
}

func TestMergeNewestFirstDedupCapped(t *testing.T) {
	current := []CodedValue{coded("a", 1), coded("b", 1), coded("c", 1)}

	got := Merge(current, coded("b", 4), coded("d", 2))
	assert.Equal(t, []string{"b", "d", "a", "c"}, codes(got))
	assert.Equal(t, float64(4), got[0].Value, "the newest entry wins")

	got = Merge(got, coded("e", 1), coded("f", 1), coded("g", 1))
	assert.Equal(t, []string{"e", "f", "g", "b", "d"}, codes(got))
}

func TestMergeTreatsSystemsSeparately(t *testing.T) {
	other := CodedValue{Code: models.Code{System: "fruit", Code: "a"}}
	got := Merge([]CodedValue{coded("a", 1)}, other)
	assert.Len(t, got, 2)
}

func TestFilter(t *testing.T) {
	values := []CodedValue{coded("a", 1), coded("b", 1)}
	got := Filter(values, []models.Code{{System: "veg", Code: "b"}})
	assert.Equal(t, []string{"b"}, codes(got))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "recent-values/m1", Key("m1"))
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger("")
	require.NoError(t, err)
	defer s.Close()

	empty, err := s.Load("m1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	got, err := Push(s, "m1", coded("a", 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, codes(got))

	_, err = Push(s, "m1", coded("b", 2))
	require.NoError(t, err)

	loaded, err := s.Load("m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, codes(loaded))

	other, err := s.Load("m2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBadgerStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("m1", []CodedValue{coded("a", 3)}))
	require.NoError(t, s.Close())

	reopened, err := OpenBadger(dir)
	require.NoError(t, err)
	defer reopened.Close()
	loaded, err := reopened.Load("m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, codes(loaded))
}
