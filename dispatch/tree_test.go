package dispatch_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/loomui/loom/dispatch"
	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

func newTestContext() *state.Context {
	logger := zerolog.Nop()
	registry := state.NewRegistry(logger)
	store := state.NewStore(registry, logger)
	return state.NewContext(store, registry, logger)
}

func newBuilder() *dispatch.TreeBuilder {
	return dispatch.NewTreeBuilder(types.NewRect(0, 0, 1000, 1000), zerolog.Nop())
}

func recordingListener(log *[]string, name string) dispatch.PointerHandler {
	return func(_ *state.Context, _ *dispatch.PointerEvent, ctl *dispatch.Control) dispatch.Result {
		*log = append(*log, name+"/"+ctl.Phase().String())
		return dispatch.Ignored
	}
}

func pointerDown(x, y float64) dispatch.PointerEvent {
	return dispatch.PointerEvent{
		Kind:     dispatch.PointerDown,
		Position: types.Point{X: x, Y: y},
		Button:   dispatch.ButtonLeft,
	}
}

func TestDispatchPhaseOrdering(t *testing.T) {
	ctx := newTestContext()
	var log []string

	b := newBuilder()
	b.Push(types.NewRect(0, 0, 500, 500), dispatch.OnPointer(recordingListener(&log, "root"), dispatch.PointerDown))
	b.Push(types.NewRect(50, 50, 300, 300), dispatch.OnPointer(recordingListener(&log, "mid"), dispatch.PointerDown))
	b.Node(types.NewRect(100, 100, 100, 100), dispatch.OnPointer(recordingListener(&log, "leaf"), dispatch.PointerDown))
	b.Pop()
	b.Pop()
	tree := b.Build()

	tree.DispatchPointer(ctx, pointerDown(150, 150))
	assert.DeepEqual(t, log, []string{
		"root/capture", "mid/capture", "leaf/target", "mid/bubble", "root/bubble",
	})
}

func TestDispatchStopPropagationDuringCapture(t *testing.T) {
	ctx := newTestContext()
	var log []string

	stopAtMid := func(_ *state.Context, _ *dispatch.PointerEvent, ctl *dispatch.Control) dispatch.Result {
		log = append(log, "mid/"+ctl.Phase().String())
		ctl.StopPropagation()
		return dispatch.Ignored
	}

	b := newBuilder()
	b.Push(types.NewRect(0, 0, 500, 500), dispatch.OnPointer(recordingListener(&log, "root"), dispatch.PointerDown))
	b.Push(types.NewRect(50, 50, 300, 300), dispatch.OnPointer(stopAtMid, dispatch.PointerDown))
	b.Node(types.NewRect(100, 100, 100, 100), dispatch.OnPointer(recordingListener(&log, "leaf"), dispatch.PointerDown))
	b.Pop()
	b.Pop()
	tree := b.Build()

	tree.DispatchPointer(ctx, pointerDown(150, 150))
	assert.DeepEqual(t, log, []string{"root/capture", "mid/capture"})
}

func TestDispatchConsumedFinishesNodeButStopsPropagation(t *testing.T) {
	ctx := newTestContext()
	var log []string

	consume := func(_ *state.Context, _ *dispatch.PointerEvent, _ *dispatch.Control) dispatch.Result {
		log = append(log, "leaf/consume")
		return dispatch.Consumed
	}

	b := newBuilder()
	b.Push(types.NewRect(0, 0, 500, 500), dispatch.OnPointer(recordingListener(&log, "root"), dispatch.PointerDown))
	b.Node(types.NewRect(100, 100, 100, 100),
		dispatch.OnPointer(consume, dispatch.PointerDown),
		dispatch.OnPointer(recordingListener(&log, "leaf2"), dispatch.PointerDown))
	b.Pop()
	tree := b.Build()

	result := tree.DispatchPointer(ctx, pointerDown(150, 150))
	assert.Equal(t, result, dispatch.Consumed)
	// The consuming node's remaining listeners still ran; bubble did not.
	assert.DeepEqual(t, log, []string{"root/capture", "leaf/consume", "leaf2/target"})
}

func TestHitTestSelectsDeepestNode(t *testing.T) {
	ctx := newTestContext()
	var log []string

	b := newBuilder()
	b.Push(types.NewRect(0, 0, 500, 500), dispatch.OnPointer(recordingListener(&log, "outer"), dispatch.PointerDown))
	b.Node(types.NewRect(0, 0, 500, 500), dispatch.OnPointer(recordingListener(&log, "inner"), dispatch.PointerDown))
	b.Pop()
	tree := b.Build()

	tree.DispatchPointer(ctx, pointerDown(10, 10))
	// inner is the target even though bounds are identical.
	assert.DeepEqual(t, log, []string{"outer/capture", "inner/target", "outer/bubble"})
}

func TestHitTestZOrderTieBreak(t *testing.T) {
	ctx := newTestContext()
	var hit []string

	targetOnly := func(name string) dispatch.PointerHandler {
		return func(_ *state.Context, _ *dispatch.PointerEvent, ctl *dispatch.Control) dispatch.Result {
			if ctl.Phase() == dispatch.PhaseTarget {
				hit = append(hit, name)
			}
			return dispatch.Ignored
		}
	}

	b := newBuilder()
	b.Node(types.NewRect(0, 0, 200, 200), dispatch.WithZ(10),
		dispatch.OnPointer(targetOnly("overlay"), dispatch.PointerDown))
	b.Node(types.NewRect(0, 0, 200, 200),
		dispatch.OnPointer(targetOnly("content"), dispatch.PointerDown))
	tree := b.Build()

	tree.DispatchPointer(ctx, pointerDown(50, 50))
	assert.DeepEqual(t, hit, []string{"overlay"})
}

func TestHitTestIgnoresNodesWithoutMatchingListener(t *testing.T) {
	ctx := newTestContext()
	var hit []string

	b := newBuilder()
	b.Push(types.NewRect(0, 0, 200, 200), dispatch.OnPointer(recordingListener(&hit, "under"), dispatch.PointerDown))
	// The inner node only listens for pointer-up, so a pointer-down must
	// resolve to the parent.
	b.Node(types.NewRect(0, 0, 200, 200), dispatch.OnPointer(recordingListener(&hit, "over"), dispatch.PointerUp))
	b.Pop()
	tree := b.Build()

	tree.DispatchPointer(ctx, pointerDown(50, 50))
	assert.DeepEqual(t, hit, []string{"under/target"})
}

func TestClickOutside(t *testing.T) {
	ctx := newTestContext()
	fired := 0

	b := newBuilder()
	b.Push(types.NewRect(0, 0, 100, 100),
		dispatch.OnPointer(func(*state.Context, *dispatch.PointerEvent, *dispatch.Control) dispatch.Result {
			return dispatch.Consumed
		}, dispatch.PointerDown),
		dispatch.OnClickOutside(func(*state.Context, *dispatch.PointerEvent, *dispatch.Control) dispatch.Result {
			fired++
			return dispatch.Consumed
		}))
	b.Node(types.NewRect(10, 10, 50, 50), dispatch.OnPointer(func(*state.Context, *dispatch.PointerEvent, *dispatch.Control) dispatch.Result {
		return dispatch.Consumed
	}, dispatch.PointerDown))
	b.Pop()
	tree := b.Build()

	// Outside everything, including outside any hit node at all.
	tree.DispatchPointer(ctx, pointerDown(200, 200))
	assert.Equal(t, fired, 1)

	// Inside the popup itself: no fire.
	tree.DispatchPointer(ctx, pointerDown(80, 80))
	assert.Equal(t, fired, 1)

	// Inside a descendant of the popup: no fire.
	tree.DispatchPointer(ctx, pointerDown(20, 20))
	assert.Equal(t, fired, 1)

	// Pointer-up outside: the post-pass only runs for pointer-down.
	tree.DispatchPointer(ctx, dispatch.PointerEvent{Kind: dispatch.PointerUp, Position: types.Point{X: 200, Y: 200}})
	assert.Equal(t, fired, 1)
}

func TestOnClickInvokesHandlerRef(t *testing.T) {
	ctx := newTestContext()

	counter, err := state.CreateEntity(ctx, struct{ Count int }{})
	assert.NilError(t, err)
	ref := state.HandlerFor(counter, func(ctx *state.Context, e types.Entity[struct{ Count int }], _ state.Arg) {
		_ = state.UpdateEntity(ctx, e, func(c *struct{ Count int }) { c.Count++ })
	})

	b := newBuilder()
	b.Node(types.NewRect(0, 0, 100, 40), dispatch.OnClick(ref))
	tree := b.Build()

	result := tree.DispatchPointer(ctx, pointerDown(50, 20))
	assert.Equal(t, result, dispatch.Consumed)

	got, ok := state.ReadEntity(ctx, counter)
	assert.Assert(t, ok)
	assert.Equal(t, got.Count, 1)
}

func TestPanickingListenerDoesNotAbortDispatch(t *testing.T) {
	ctx := newTestContext()
	var log []string

	b := newBuilder()
	b.Push(types.NewRect(0, 0, 500, 500), dispatch.OnPointer(recordingListener(&log, "root"), dispatch.PointerDown))
	b.Node(types.NewRect(0, 0, 100, 100),
		dispatch.OnPointer(func(*state.Context, *dispatch.PointerEvent, *dispatch.Control) dispatch.Result {
			panic("listener bug")
		}, dispatch.PointerDown))
	b.Pop()
	tree := b.Build()

	// Must not panic; the rest of the path still runs.
	tree.DispatchPointer(ctx, pointerDown(50, 50))
	assert.DeepEqual(t, log, []string{"root/capture", "root/bubble"})
}

func TestZeroAreaNodeWithListenersIsLogged(t *testing.T) {
	var buf bytes.Buffer
	b := dispatch.NewTreeBuilder(types.NewRect(0, 0, 1000, 1000), zerolog.New(&buf))

	b.Node(types.NewRect(50, 50, 0, 0), dispatch.OnPointer(
		func(*state.Context, *dispatch.PointerEvent, *dispatch.Control) dispatch.Result {
			return dispatch.Consumed
		}, dispatch.PointerDown))
	tree := b.Build()

	assert.Assert(t, strings.Contains(buf.String(), "zero-area node registered listeners"))
	// And it is indeed unhittable.
	assert.Equal(t, tree.HitTest(types.Point{X: 50, Y: 50}, dispatch.PointerDown), types.NilNode)
}

func TestKeyEventRoutesToRootWithoutFocus(t *testing.T) {
	ctx := newTestContext()
	var seen []string

	b := newBuilder()
	b.Push(types.NewRect(0, 0, 500, 500), dispatch.OnKey(
		func(_ *state.Context, ev *dispatch.KeyEvent, _ *dispatch.Control) dispatch.Result {
			seen = append(seen, ev.Text)
			return dispatch.Consumed
		}))
	b.Pop()
	tree := b.Build()

	// The root itself has no key listener; the child registered one but
	// key routing without focus targets the root only.
	tree.DispatchKey(ctx, dispatch.KeyEvent{Kind: dispatch.TextInput, Text: "a"}, types.NilNode)
	assert.Equal(t, len(seen), 0)
}
