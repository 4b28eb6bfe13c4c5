package dispatch

import (
	"github.com/rs/zerolog"

	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

// TreeBuilder assembles a dispatch tree during the render pass. The
// render/layout collaborator walks its visual hierarchy and mirrors it
// here with final, post-layout bounds; Push/Pop bracket container nodes,
// Node adds a leaf. Build returns the finished tree.
type TreeBuilder struct {
	nodes  []node
	stack  []types.NodeID
	logger zerolog.Logger
}

// NewTreeBuilder starts a build with an implicit root node covering the
// viewport.
func NewTreeBuilder(viewport types.Rect, logger zerolog.Logger) *TreeBuilder {
	b := &TreeBuilder{
		logger: logger.With().Str("component", "dispatch_tree").Logger(),
	}
	b.nodes = append(b.nodes, node{
		id:     0,
		bounds: viewport,
		parent: types.NilNode,
	})
	b.stack = append(b.stack, 0)
	return b
}

// Root returns the implicit root node's id.
func (b *TreeBuilder) Root() types.NodeID {
	return 0
}

// Push adds a node under the current parent and makes it the parent for
// subsequent nodes until the matching Pop.
func (b *TreeBuilder) Push(bounds types.Rect, opts ...NodeOption) types.NodeID {
	id := b.add(bounds, opts...)
	b.stack = append(b.stack, id)
	return id
}

// Pop closes the node opened by the matching Push.
func (b *TreeBuilder) Pop() {
	if len(b.stack) <= 1 {
		b.logger.Warn().Msg("unbalanced pop on dispatch tree builder")
		return
	}
	b.stack = b.stack[:len(b.stack)-1]
}

// Node adds a leaf under the current parent.
func (b *TreeBuilder) Node(bounds types.Rect, opts ...NodeOption) types.NodeID {
	return b.add(bounds, opts...)
}

func (b *TreeBuilder) add(bounds types.Rect, opts ...NodeOption) types.NodeID {
	parent := b.stack[len(b.stack)-1]
	id := types.NodeID(len(b.nodes))
	n := node{
		id:     id,
		bounds: bounds,
		parent: parent,
		z:      b.nodes[parent].z,
		depth:  b.nodes[parent].depth + 1,
	}
	for _, opt := range opts {
		opt(&n)
	}
	if bounds.IsEmpty() && (len(n.pointer) > 0 || len(n.clickOutside) > 0 || n.focus != nil) {
		// Contains is always false on an empty rect, so these listeners
		// can never fire. Usually a layout bug upstream.
		b.logger.Debug().Int("node", int(id)).Msg("zero-area node registered listeners")
	}
	b.nodes = append(b.nodes, n)
	b.nodes[parent].children = append(b.nodes[parent].children, id)
	return id
}

// Build finishes the tree. Unbalanced Push/Pop pairs are tolerated with a
// warning; the nodes are parented where the builder stood when they were
// added.
func (b *TreeBuilder) Build() *Tree {
	if len(b.stack) != 1 {
		b.logger.Warn().Int("open_nodes", len(b.stack)-1).Msg("dispatch tree built with unclosed nodes")
	}
	return &Tree{nodes: b.nodes, logger: b.logger}
}

// Tree is the per-frame, hit-testable event routing hierarchy. It is
// fully discarded and rebuilt every frame from the current render output;
// that churn buys correctness, since no stale node reference can survive
// a layout change.
type Tree struct {
	nodes  []node
	logger zerolog.Logger
}

// Len returns the number of nodes, including the implicit root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Bounds returns a node's hit-test bounds.
func (t *Tree) Bounds(id types.NodeID) (types.Rect, bool) {
	if int(id) < 0 || int(id) >= len(t.nodes) {
		return types.Rect{}, false
	}
	return t.nodes[id].bounds, true
}

// HitTest returns the deepest node whose bounds contain p and which has
// at least one listener for kind. Ties are broken by z-order (higher
// wins), then by build order (later wins, matching paint order).
func (t *Tree) HitTest(p types.Point, kind EventKind) types.NodeID {
	best := types.NilNode
	for i := range t.nodes {
		n := &t.nodes[i]
		if !n.bounds.Contains(p) || !t.listensFor(n, kind) {
			continue
		}
		if best == types.NilNode || t.hitBeats(n, &t.nodes[best]) {
			best = n.id
		}
	}
	return best
}

func (t *Tree) hitBeats(a, b *node) bool {
	if a.depth != b.depth {
		return a.depth > b.depth
	}
	if a.z != b.z {
		return a.z > b.z
	}
	return a.id > b.id
}

func (t *Tree) listensFor(n *node, kind EventKind) bool {
	switch kind {
	case KeyDown, KeyUp, TextInput:
		return len(n.keys) > 0
	default:
		for _, l := range n.pointer {
			if l.kinds.has(kind) {
				return true
			}
		}
	}
	return false
}

// pathTo returns the node chain root -> target.
func (t *Tree) pathTo(target types.NodeID) []types.NodeID {
	var rev []types.NodeID
	for id := target; id != types.NilNode; id = t.nodes[id].parent {
		rev = append(rev, id)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// isDescendantOf reports whether id sits in ancestor's subtree. A node is
// not its own descendant.
func (t *Tree) isDescendantOf(id, ancestor types.NodeID) bool {
	if id == types.NilNode || ancestor == types.NilNode {
		return false
	}
	for cur := t.nodes[id].parent; cur != types.NilNode; cur = t.nodes[cur].parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// DispatchPointer hit-tests ev and routes it capture -> target -> bubble
// along the path, then runs the click-outside post-pass for pointer-down
// events. The returned result reports whether any listener consumed the
// event.
func (t *Tree) DispatchPointer(ctx *state.Context, ev PointerEvent) Result {
	target := t.HitTest(ev.Position, ev.Kind)
	result := Ignored
	if target != types.NilNode {
		ctl := &Control{target: target}
		path := t.pathTo(target)
	phases:
		for i := 0; i < len(path); i++ {
			ctl.phase = PhaseCapture
			nodeID := path[i]
			if nodeID == target {
				ctl.phase = PhaseTarget
			}
			if t.runPointerListeners(ctx, ctl, nodeID, &ev) == Consumed {
				result = Consumed
				break phases
			}
			if ctl.stopped {
				break phases
			}
		}
		if !ctl.stopped && result == Ignored {
			ctl.phase = PhaseBubble
			for i := len(path) - 2; i >= 0; i-- {
				if t.runPointerListeners(ctx, ctl, path[i], &ev) == Consumed {
					result = Consumed
					break
				}
				if ctl.stopped {
					break
				}
			}
		}
	}
	if ev.Kind == PointerDown {
		t.dispatchClickOutside(ctx, target, &ev)
	}
	return result
}

// runPointerListeners runs every matching listener on one node. A
// Consumed result still lets the node's remaining listeners run; a
// StopPropagation halts after the current listener.
func (t *Tree) runPointerListeners(ctx *state.Context, ctl *Control, id types.NodeID, ev *PointerEvent) Result {
	n := &t.nodes[id]
	ctl.node = id
	result := Ignored
	for _, l := range n.pointer {
		if !l.kinds.has(ev.Kind) {
			continue
		}
		if t.invokePointer(ctx, l.fn, ev, ctl) == Consumed {
			result = Consumed
		}
		if ctl.stopped {
			break
		}
	}
	return result
}

// invokePointer shields the dispatch loop from a misbehaving listener:
// one panic must not abort the frame for every other node.
func (t *Tree) invokePointer(ctx *state.Context, fn PointerHandler, ev *PointerEvent, ctl *Control) (res Result) {
	defer func() {
		if panicValue := recover(); panicValue != nil {
			t.logger.Error().
				Interface("panic", panicValue).
				Stringer("kind", ev.Kind).
				Int("node", int(ctl.node)).
				Str("phase", ctl.phase.String()).
				Msg("pointer listener panicked")
			res = Ignored
		}
	}()
	return fn(ctx, ev, ctl)
}

// dispatchClickOutside fires every click-outside listener whose node is
// neither the pointer-down target nor one of its ancestors. It is a
// post-pass: stop-propagation during normal dispatch does not suppress
// it.
func (t *Tree) dispatchClickOutside(ctx *state.Context, target types.NodeID, ev *PointerEvent) {
	for i := range t.nodes {
		n := &t.nodes[i]
		if len(n.clickOutside) == 0 {
			continue
		}
		if target != types.NilNode && (target == n.id || t.isDescendantOf(target, n.id)) {
			continue
		}
		ctl := &Control{phase: PhaseTarget, node: n.id, target: target}
		for _, fn := range n.clickOutside {
			t.invokePointer(ctx, fn, ev, ctl)
			if ctl.stopped {
				break
			}
		}
	}
}

// DispatchKey routes a key event along the path to target, which is the
// focused node resolved by the focus manager. With no focused node the
// event goes to the root's key listeners only.
func (t *Tree) DispatchKey(ctx *state.Context, ev KeyEvent, target types.NodeID) Result {
	if target == types.NilNode {
		target = 0
	}
	ctl := &Control{target: target}
	path := t.pathTo(target)
	result := Ignored
	for i := 0; i < len(path); i++ {
		ctl.phase = PhaseCapture
		if path[i] == target {
			ctl.phase = PhaseTarget
		}
		if t.runKeyListeners(ctx, ctl, path[i], &ev) == Consumed {
			return Consumed
		}
		if ctl.stopped {
			return result
		}
	}
	ctl.phase = PhaseBubble
	for i := len(path) - 2; i >= 0; i-- {
		if t.runKeyListeners(ctx, ctl, path[i], &ev) == Consumed {
			return Consumed
		}
		if ctl.stopped {
			return result
		}
	}
	return result
}

func (t *Tree) runKeyListeners(ctx *state.Context, ctl *Control, id types.NodeID, ev *KeyEvent) Result {
	n := &t.nodes[id]
	ctl.node = id
	result := Ignored
	for _, fn := range n.keys {
		if t.invokeKey(ctx, fn, ev, ctl) == Consumed {
			result = Consumed
		}
		if ctl.stopped {
			break
		}
	}
	return result
}

func (t *Tree) invokeKey(ctx *state.Context, fn KeyHandler, ev *KeyEvent, ctl *Control) (res Result) {
	defer func() {
		if panicValue := recover(); panicValue != nil {
			t.logger.Error().
				Interface("panic", panicValue).
				Stringer("kind", ev.Kind).
				Int("node", int(ctl.node)).
				Str("phase", ctl.phase.String()).
				Msg("key listener panicked")
			res = Ignored
		}
	}()
	return fn(ctx, ev, ctl)
}

// focusables returns the frame's focus targets in build order.
func (t *Tree) focusables() []focusEntry {
	var out []focusEntry
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.focus == nil {
			continue
		}
		out = append(out, focusEntry{
			id:       n.focus.id,
			tabIndex: n.focus.tabIndex,
			onFocus:  n.focus.onFocus,
			node:     n.id,
			seq:      len(out),
		})
	}
	return out
}
