package widget_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/wI2L/jsondiff"
	"gotest.tools/v3/assert"

	"github.com/loomui/loom/widget"
)

type scrollState struct {
	Offset float64 `json:"offset"`
}

type textState struct {
	Cursor int    `json:"cursor"`
	Buffer string `json:"buffer"`
}

func newScroll() *scrollState { return &scrollState{} }

func TestGetRetainsStateAcrossFrames(t *testing.T) {
	store := widget.NewStore(zerolog.Nop())

	st := widget.Get(store, "sidebar/scroll", newScroll)
	st.Offset = 120

	// Next frame, same id: same state.
	store.BeginFrame()
	again := widget.Get(store, "sidebar/scroll", newScroll)
	assert.Equal(t, again.Offset, 120.0)
}

func TestIDChangeReadsAsFreshWidget(t *testing.T) {
	store := widget.NewStore(zerolog.Nop())

	widget.Get(store, "list/scroll", newScroll).Offset = 50
	fresh := widget.Get(store, "list/scroll/v2", newScroll)
	assert.Equal(t, fresh.Offset, 0.0)
	assert.Equal(t, store.Len(), 2)
}

func TestTypeMismatchResetsState(t *testing.T) {
	store := widget.NewStore(zerolog.Nop())

	widget.Get(store, "field", newScroll).Offset = 9
	text := widget.Get(store, "field", func() *textState { return &textState{Cursor: 1} })
	assert.Equal(t, text.Cursor, 1)
}

func TestSweepDropsUntouchedWidgets(t *testing.T) {
	store := widget.NewStore(zerolog.Nop())

	widget.Get(store, "a", newScroll)
	widget.Get(store, "b", newScroll)

	store.BeginFrame()
	widget.Get(store, "a", newScroll)
	assert.Equal(t, store.Sweep(), 1)
	assert.Equal(t, store.Len(), 1)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	store := widget.NewStore(zerolog.Nop())

	widget.Get(store, "editor", func() *textState { return &textState{} }).Buffer = "hello"
	widget.Get(store, "editor", func() *textState { return &textState{} }).Cursor = 5
	widget.Get(store, "pane/scroll", newScroll).Offset = 33.5

	snap, err := store.Snapshot()
	assert.NilError(t, err)

	restored := widget.NewStore(zerolog.Nop())
	assert.NilError(t, restored.Restore(snap))

	text := widget.Get(restored, "editor", func() *textState { return &textState{} })
	assert.Equal(t, text.Buffer, "hello")
	assert.Equal(t, text.Cursor, 5)
	assert.Equal(t, widget.Get(restored, "pane/scroll", newScroll).Offset, 33.5)

	// A second snapshot of the restored store is semantically identical.
	snap2, err := restored.Snapshot()
	assert.NilError(t, err)
	patch, err := jsondiff.CompareJSON(snap, snap2)
	assert.NilError(t, err)
	assert.Assert(t, len(patch) == 0, "snapshots differ: %v", patch)
}

func TestRestoreRejectsGarbage(t *testing.T) {
	store := widget.NewStore(zerolog.Nop())
	assert.ErrorIs(t, store.Restore([]byte("not json")), widget.ErrBadSnapshot)
}

func TestUndecodableSnapshotEntryResets(t *testing.T) {
	store := widget.NewStore(zerolog.Nop())
	assert.NilError(t, store.Restore([]byte(`{"editor": "scalar"}`)))

	text := widget.Get(store, "editor", func() *textState { return &textState{Cursor: 2} })
	assert.Equal(t, text.Cursor, 2)
}
