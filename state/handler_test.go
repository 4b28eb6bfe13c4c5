package state_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

func TestArgVariants(t *testing.T) {
	i, ok := state.IntArg(9).Int()
	assert.Assert(t, ok)
	assert.Equal(t, i, int64(9))

	f, ok := state.FloatArg(1.5).Float()
	assert.Assert(t, ok)
	assert.Equal(t, f, 1.5)

	b, ok := state.BoolArg(true).Bool()
	assert.Assert(t, ok)
	assert.Assert(t, b)

	s, ok := state.StringArg("drag").String()
	assert.Assert(t, ok)
	assert.Equal(t, s, "drag")

	type payload struct{ A, B int }
	v, ok := state.BoxedArg(payload{1, 2}).Boxed()
	assert.Assert(t, ok)
	assert.Equal(t, v.(payload).A, 1)

	// Accessors of the wrong kind miss.
	_, ok = state.IntArg(9).String()
	assert.Assert(t, !ok)
	assert.Equal(t, state.NoArg().Kind(), state.ArgNone)
}

func TestZeroHandlerIsNoOp(t *testing.T) {
	ctx, _, _ := newTestContext()

	var ref state.HandlerRef
	assert.Assert(t, ref.IsZero())
	ref.Invoke(ctx) // must not panic
}

func TestHandlerRefIsCopyable(t *testing.T) {
	ctx, _, _ := newTestContext()

	counter, err := state.CreateEntity(ctx, Counter{})
	assert.NilError(t, err)

	calls := 0
	ref := state.NewHandler(counter.ID, state.NoArg(),
		func(ctx *state.Context, bound types.EntityID, _ state.Arg) {
			assert.Equal(t, ctx.Bound(), bound)
			calls++
		})

	// Copies invoke independently; the original is unchanged by WithArg.
	ref2 := ref
	ref3 := ref.WithArg(state.IntArg(1))
	ref.Invoke(ctx)
	ref2.Invoke(ctx)
	ref3.Invoke(ctx)
	assert.Equal(t, calls, 3)
}
