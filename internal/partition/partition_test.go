package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keyspace/internal/tree"
)

func TestHandleStartsActive(t *testing.T) {
	h := New("users", tree.NewMemtable(), DefaultConfig())
	assert.Equal(t, "users", h.Name())
	assert.Equal(t, StateActive, h.State())
}

func TestHandleStatsAreCumulative(t *testing.T) {
	h := New("users", tree.NewMemtable(), DefaultConfig())
	h.RecordGet()
	h.RecordGet()
	h.RecordInsert()
	h.RecordRemove()

	stats := h.Stats()
	assert.Equal(t, uint64(2), stats.Gets)
	assert.Equal(t, uint64(1), stats.Inserts)
	assert.Equal(t, uint64(1), stats.Removes)
}

func TestHandleSetStateTerminalAfterDrop(t *testing.T) {
	h := New("users", tree.NewMemtable(), DefaultConfig())
	require.NoError(t, h.SetState(StateCompacting))
	assert.Equal(t, StateCompacting, h.State())

	require.NoError(t, h.SetState(StateDropped))
	assert.Equal(t, StateDropped, h.State())

	err := h.SetState(StateActive)
	assert.Error(t, err)
	assert.Equal(t, StateDropped, h.State())
}

func TestHandleTreeReturnsOwnedTree(t *testing.T) {
	tr := tree.NewMemtable()
	h := New("users", tr, DefaultConfig())
	require.NoError(t, h.Tree().Insert([]byte("k"), []byte("v"), 1, tree.KindValue))

	v, ok := tr.Get([]byte("k"), 1)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestHandleExceedsMemtableThreshold(t *testing.T) {
	h := New("users", tree.NewMemtable(), Config{MaxMemtableSize: 100})
	assert.False(t, h.ExceedsMemtableThreshold())

	h.AddApproxBytes(50)
	assert.False(t, h.ExceedsMemtableThreshold())

	h.AddApproxBytes(60)
	assert.True(t, h.ExceedsMemtableThreshold())

	h.ResetApproxBytes()
	assert.False(t, h.ExceedsMemtableThreshold())
}

func TestHandleZeroThresholdDisablesCheck(t *testing.T) {
	h := New("users", tree.NewMemtable(), Config{MaxMemtableSize: 0})
	h.AddApproxBytes(1 << 30)
	assert.False(t, h.ExceedsMemtableThreshold())
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	h := New("users", tree.NewMemtable(), DefaultConfig())

	require.NoError(t, r.Register(h))

	got, ok := r.Get("users")
	require.True(t, ok)
	assert.Same(t, h, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRegisterDuplicateNameFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(New("users", tree.NewMemtable(), DefaultConfig())))

	err := r.Register(New("users", tree.NewMemtable(), DefaultConfig()))
	assert.Error(t, err)
}

func TestRegistryListIsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(New("zebra", tree.NewMemtable(), DefaultConfig())))
	require.NoError(t, r.Register(New("alpha", tree.NewMemtable(), DefaultConfig())))
	require.NoError(t, r.Register(New("mid", tree.NewMemtable(), DefaultConfig())))

	assert.Equal(t, []string{"alpha", "mid", "zebra"}, r.List())
}

func TestRegistryDropRemovesAndMarksDropped(t *testing.T) {
	r := NewRegistry()
	h := New("users", tree.NewMemtable(), DefaultConfig())
	require.NoError(t, r.Register(h))

	require.NoError(t, r.Drop("users"))
	assert.Equal(t, StateDropped, h.State())

	_, ok := r.Get("users")
	assert.False(t, ok)

	err := r.Drop("users")
	assert.Error(t, err)
}

func TestRegistryAllReturnsEveryHandle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(New("a", tree.NewMemtable(), DefaultConfig())))
	require.NoError(t, r.Register(New("b", tree.NewMemtable(), DefaultConfig())))

	assert.Len(t, r.All(), 2)
}
