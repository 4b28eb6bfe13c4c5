package dispatch

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

type focusEntry struct {
	id       types.FocusID
	tabIndex int
	onFocus  FocusHandler
	node     types.NodeID
	seq      int
}

// FocusManager tracks which single node owns keyboard focus. Focus ids
// are stable across frames while node ids are not, so the manager stores
// the id and re-resolves the node against each frame's tree.
type FocusManager struct {
	active types.FocusID
	order  []focusEntry
	logger zerolog.Logger
}

func NewFocusManager(logger zerolog.Logger) *FocusManager {
	return &FocusManager{
		logger: logger.With().Str("component", "focus_manager").Logger(),
	}
}

// Active returns the currently focused id, or types.NilFocus.
func (f *FocusManager) Active() types.FocusID {
	return f.active
}

// SyncTree adopts a freshly built tree: it collects the frame's
// focusables ordered by (tab index, build order) and silently clears
// focus if the focused element did not appear in this frame. No blur
// event fires for a removed element; there is no node left to deliver it
// to.
func (f *FocusManager) SyncTree(tree *Tree) {
	f.order = tree.focusables()
	sort.SliceStable(f.order, func(i, j int) bool {
		if f.order[i].tabIndex != f.order[j].tabIndex {
			return f.order[i].tabIndex < f.order[j].tabIndex
		}
		return f.order[i].seq < f.order[j].seq
	})
	if f.active != types.NilFocus && f.find(f.active) == -1 {
		f.logger.Debug().Uint64("focus_id", uint64(f.active)).Msg("focused element left the tree, clearing focus")
		f.active = types.NilFocus
	}
}

func (f *FocusManager) find(id types.FocusID) int {
	for i := range f.order {
		if f.order[i].id == id {
			return i
		}
	}
	return -1
}

// Focus moves keyboard focus to id. The previous element's listener sees
// FocusEvent{Blurred} before the new element's sees FocusEvent{Focused},
// and during the blur callback no element is focused: a blur handler must
// never observe the new focus already set.
func (f *FocusManager) Focus(ctx *state.Context, id types.FocusID) {
	if id == f.active {
		return
	}
	idx := f.find(id)
	if idx == -1 {
		f.logger.Warn().Uint64("focus_id", uint64(id)).Msg("focus target not in current tree")
		return
	}
	f.fireBlur(ctx)
	f.active = id
	if fn := f.order[idx].onFocus; fn != nil {
		fn(ctx, FocusEvent{Kind: Focused, Target: id})
	}
}

// Blur clears focus, delivering the blur event to the element losing it.
func (f *FocusManager) Blur(ctx *state.Context) {
	f.fireBlur(ctx)
}

// BlurAll clears focus unconditionally, whether or not the focused
// element still exists in the current tree. Used when navigating away
// from a view that owned the focused field.
func (f *FocusManager) BlurAll(ctx *state.Context) {
	if f.active == types.NilFocus {
		return
	}
	f.fireBlur(ctx)
	f.active = types.NilFocus
}

func (f *FocusManager) fireBlur(ctx *state.Context) {
	prev := f.active
	if prev == types.NilFocus {
		return
	}
	f.active = types.NilFocus
	if idx := f.find(prev); idx != -1 {
		if fn := f.order[idx].onFocus; fn != nil {
			fn(ctx, FocusEvent{Kind: Blurred, Target: prev})
		}
	}
}

// FocusNext advances to the next focusable element in tab order, wrapping
// at the end. From the unfocused state it lands on the first element.
func (f *FocusManager) FocusNext(ctx *state.Context) {
	f.step(ctx, 1)
}

// FocusPrev moves to the previous focusable element, wrapping at the
// front. From the unfocused state it lands on the last element.
func (f *FocusManager) FocusPrev(ctx *state.Context) {
	f.step(ctx, -1)
}

func (f *FocusManager) step(ctx *state.Context, dir int) {
	n := len(f.order)
	if n == 0 {
		return
	}
	var next int
	if cur := f.find(f.active); cur == -1 {
		if dir > 0 {
			next = 0
		} else {
			next = n - 1
		}
	} else {
		next = (cur + dir + n) % n
	}
	f.Focus(ctx, f.order[next].id)
}

// DispatchKey routes ev along the path to the focused node in the given
// tree. With no focus the root's key listeners still see the event.
func (f *FocusManager) DispatchKey(ctx *state.Context, tree *Tree, ev KeyEvent) Result {
	target := types.NilNode
	if idx := f.find(f.active); idx != -1 {
		target = f.order[idx].node
	}
	return tree.DispatchKey(ctx, ev, target)
}
