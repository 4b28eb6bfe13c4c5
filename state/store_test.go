package state_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

type Counter struct {
	Count int
}

type Label struct {
	Text string
}

func newTestStore() (*state.Store, *state.Registry) {
	logger := zerolog.Nop()
	registry := state.NewRegistry(logger)
	return state.NewStore(registry, logger), registry
}

func TestStoreCreateAndRead(t *testing.T) {
	store, _ := newTestStore()

	counter, err := state.Create(store, Counter{Count: 7})
	assert.NilError(t, err)
	assert.Assert(t, !counter.IsNil())
	assert.Equal(t, store.Len(), 1)

	got, ok := state.Read(store, counter)
	assert.Assert(t, ok)
	assert.Equal(t, got.Count, 7)

	name, ok := store.TypeName(counter.ID)
	assert.Assert(t, ok)
	assert.Equal(t, name, "Counter")
}

func TestStoreWriteMutatesInPlace(t *testing.T) {
	store, _ := newTestStore()

	counter, err := state.Create(store, Counter{})
	assert.NilError(t, err)

	v, ok := state.Write(store, counter)
	assert.Assert(t, ok)
	v.Count = 42

	got, ok := state.Read(store, counter)
	assert.Assert(t, ok)
	assert.Equal(t, got.Count, 42)
}

func TestStoreGenerationSafety(t *testing.T) {
	store, _ := newTestStore()

	counter, err := state.Create(store, Counter{Count: 1})
	assert.NilError(t, err)
	assert.NilError(t, store.Remove(counter.ID))

	// Fill the freed slot and then some. The stale handle must stay dead
	// even though a new entity reuses its index.
	var reused types.Entity[Counter]
	for i := 0; i < 8; i++ {
		e, err := state.Create(store, Counter{Count: 100 + i})
		assert.NilError(t, err)
		if e.ID.Index() == counter.ID.Index() {
			reused = e
		}
	}
	assert.Assert(t, !reused.IsNil())
	assert.Assert(t, reused.ID.Generation() != counter.ID.Generation())

	_, ok := state.Read(store, counter)
	assert.Assert(t, !ok)
	_, ok = state.Write(store, counter)
	assert.Assert(t, !ok)

	got, ok := state.Read(store, reused)
	assert.Assert(t, ok)
	assert.Equal(t, got.Count, 100)
}

func TestStoreTypeSafety(t *testing.T) {
	var buf bytes.Buffer
	registry := state.NewRegistry(zerolog.Nop())
	store := state.NewStore(registry, zerolog.New(&buf))

	counter, err := state.Create(store, Counter{Count: 3})
	assert.NilError(t, err)

	// Same id, wrong type tag: must come back empty, never reinterpreted.
	asLabel := types.Entity[Label]{ID: counter.ID}
	_, ok := state.Read(store, asLabel)
	assert.Assert(t, !ok)
	assert.Assert(t, strings.Contains(buf.String(), "typed read rejected"))
	assert.Assert(t, strings.Contains(buf.String(), state.ErrTypeMismatch.Error()))

	got, ok := state.Read(store, counter)
	assert.Assert(t, ok)
	assert.Equal(t, got.Count, 3)
}

func TestStoreRemoveIsSilentOnStaleHandle(t *testing.T) {
	store, _ := newTestStore()

	counter, err := state.Create(store, Counter{})
	assert.NilError(t, err)
	assert.NilError(t, store.Remove(counter.ID))
	assert.ErrorIs(t, store.Remove(counter.ID), state.ErrEntityDoesNotExist)
	assert.Equal(t, store.Len(), 0)
}

func TestStoreNilAndRootSentinels(t *testing.T) {
	store, _ := newTestStore()

	assert.Assert(t, !store.Contains(types.NilEntity))
	assert.Assert(t, !store.Contains(types.RootEntity))
	assert.ErrorIs(t, store.Remove(types.NilEntity), state.ErrEntityDoesNotExist)
}

func TestStoreCapacity(t *testing.T) {
	store, _ := newTestStore()
	store.SetCapacity(2)

	_, err := state.Create(store, Counter{})
	assert.NilError(t, err)
	_, err = state.Create(store, Counter{})
	assert.NilError(t, err)
	_, err = state.Create(store, Counter{})
	assert.ErrorIs(t, err, state.ErrStoreFull)

	// Freed slots are reusable even at capacity.
	ids := make([]types.EntityID, 0)
	store.Each(func(id types.EntityID, _ string, _ any) { ids = append(ids, id) })
	assert.NilError(t, store.Remove(ids[0]))
	_, err = state.Create(store, Counter{})
	assert.NilError(t, err)
}

func TestStoreUpdatePanicsOnReentrantWrite(t *testing.T) {
	store, _ := newTestStore()

	counter, err := state.Create(store, Counter{})
	assert.NilError(t, err)

	defer func() {
		panicValue := recover()
		assert.Assert(t, panicValue != nil)
	}()
	state.Update(store, counter, func(_ *Counter) {
		state.Update(store, counter, func(_ *Counter) {})
	})
	t.Fatal("nested update should have panicked")
}

func TestStoreUpdateSurvivesCreateInsideCallback(t *testing.T) {
	store, _ := newTestStore()

	// One entity, so the table's backing array is full and the create
	// inside the callback forces it to grow and relocate.
	counter, err := state.Create(store, Counter{})
	assert.NilError(t, err)

	var spawned types.Entity[Label]
	ok := state.Update(store, counter, func(c *Counter) {
		c.Count++
		spawned, err = state.Create(store, Label{Text: "child"})
		assert.NilError(t, err)
	})
	assert.Assert(t, ok)
	assert.Assert(t, store.Contains(spawned.ID))

	// The busy mark must have been cleared on the relocated slot: a
	// follow-up update of the same entity is not re-entrant.
	ok = state.Update(store, counter, func(c *Counter) { c.Count++ })
	assert.Assert(t, ok)

	got, ok := state.Read(store, counter)
	assert.Assert(t, ok)
	assert.Equal(t, got.Count, 2)
}

func TestStoreEachVisitsLiveOnly(t *testing.T) {
	store, _ := newTestStore()

	a, err := state.Create(store, Counter{})
	assert.NilError(t, err)
	_, err = state.Create(store, Label{Text: "x"})
	assert.NilError(t, err)
	assert.NilError(t, store.Remove(a.ID))

	seen := map[string]int{}
	store.Each(func(_ types.EntityID, name string, _ any) { seen[name]++ })
	assert.Equal(t, len(seen), 1)
	assert.Equal(t, seen["Label"], 1)
}
