package dispatch

import (
	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

// PointerHandler handles a pointer event during one of the propagation
// phases. It runs synchronously on the frame loop with a read-write
// context.
type PointerHandler func(ctx *state.Context, ev *PointerEvent, ctl *Control) Result

// KeyHandler handles a keyboard event routed along the focus path.
type KeyHandler func(ctx *state.Context, ev *KeyEvent, ctl *Control) Result

// FocusHandler is told when the node it was registered on gains or loses
// keyboard focus.
type FocusHandler func(ctx *state.Context, ev FocusEvent)

type kindMask uint16

func maskOf(kinds ...EventKind) kindMask {
	var m kindMask
	for _, k := range kinds {
		m |= 1 << k
	}
	return m
}

func (m kindMask) has(k EventKind) bool {
	return m&(1<<k) != 0
}

type pointerListener struct {
	kinds kindMask
	fn    PointerHandler
}

// focusTarget is a node's focus registration. The id must be stable
// across frames for the same logical element; tab order is (tabIndex
// ascending, then build order).
type focusTarget struct {
	id       types.FocusID
	tabIndex int
	onFocus  FocusHandler
}

// node is one entry of a frame's dispatch tree. Nodes are created during
// the tree build and dropped with the tree; persistent state belongs in
// the entity or widget store instead.
type node struct {
	id           types.NodeID
	bounds       types.Rect
	z            int
	parent       types.NodeID
	children     []types.NodeID
	depth        int
	pointer      []pointerListener
	keys         []KeyHandler
	clickOutside []PointerHandler
	focus        *focusTarget
}

// NodeOption configures a node during the tree build.
type NodeOption func(*node)

// WithZ sets the node's z-order. Nodes without an explicit z inherit the
// parent's, so an overlay subtree only needs it on its root.
func WithZ(z int) NodeOption {
	return func(n *node) {
		n.z = z
	}
}

// OnPointer registers a handler for the given pointer event kinds.
func OnPointer(fn PointerHandler, kinds ...EventKind) NodeOption {
	return func(n *node) {
		n.pointer = append(n.pointer, pointerListener{kinds: maskOf(kinds...), fn: fn})
	}
}

// OnClick invokes the handler reference when a pointer-down lands on the
// node and consumes the event.
func OnClick(ref state.HandlerRef) NodeOption {
	return OnPointer(func(ctx *state.Context, _ *PointerEvent, ctl *Control) Result {
		if ctl.Phase() != PhaseTarget {
			return Ignored
		}
		ref.Invoke(ctx)
		return Consumed
	}, PointerDown)
}

// OnKey registers a keyboard handler. Key events are routed along the
// path to the focused node.
func OnKey(fn KeyHandler) NodeOption {
	return func(n *node) {
		n.keys = append(n.keys, fn)
	}
}

// OnClickOutside registers a handler that fires when a pointer-down
// hit-tests to a node that is neither this node nor one of its
// descendants. It runs as a post-pass after normal dispatch, outside the
// capture/bubble phases. Typical use: dismissing popups and menus.
func OnClickOutside(fn PointerHandler) NodeOption {
	return func(n *node) {
		n.clickOutside = append(n.clickOutside, fn)
	}
}

// Focusable marks the node as keyboard-focusable under the given stable
// id. onFocus may be nil.
func Focusable(id types.FocusID, tabIndex int, onFocus FocusHandler) NodeOption {
	return func(n *node) {
		n.focus = &focusTarget{id: id, tabIndex: tabIndex, onFocus: onFocus}
	}
}
