// Package dispatch routes normalized input events through a per-frame,
// hit-testable tree of nodes using capture, target and bubble phases. The
// tree is rebuilt from the layout collaborator's output every frame and
// discarded at the end of it; nothing in this package survives a frame,
// which is what keeps node references from going stale across layout
// changes.
package dispatch

import (
	"github.com/loomui/loom/types"
)

// EventKind discriminates the normalized input events. Platform input
// arrives in native form and is converted to these variants before
// routing.
type EventKind uint8

const (
	PointerDown EventKind = iota + 1
	PointerUp
	PointerMove
	Scroll
	KeyDown
	KeyUp
	TextInput
)

func (k EventKind) String() string {
	switch k {
	case PointerDown:
		return "pointer_down"
	case PointerUp:
		return "pointer_up"
	case PointerMove:
		return "pointer_move"
	case Scroll:
		return "scroll"
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case TextInput:
		return "text_input"
	}
	return "unknown"
}

// Phase is the propagation phase a listener is being visited in.
type Phase uint8

const (
	PhaseCapture Phase = iota + 1
	PhaseTarget
	PhaseBubble
)

func (p Phase) String() string {
	switch p {
	case PhaseCapture:
		return "capture"
	case PhaseTarget:
		return "target"
	case PhaseBubble:
		return "bubble"
	}
	return "unknown"
}

// Result is what a listener reports back. Ignored events continue to the
// next listener and phase; a Consumed event still finishes the current
// node's remaining listeners but does not propagate further.
type Result uint8

const (
	Ignored Result = iota
	Consumed
)

// Modifiers is the bitmask of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod != 0
}

type PointerButton uint8

const (
	ButtonNone PointerButton = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
)

// PointerEvent is a normalized mouse/touch event in screen space.
type PointerEvent struct {
	Kind      EventKind
	Position  types.Point
	Button    PointerButton
	Modifiers Modifiers
	// Delta carries scroll distance for Scroll events.
	Delta types.Point
}

// KeyEvent is a normalized keyboard event. Text carries committed text or
// IME composition output for TextInput events.
type KeyEvent struct {
	Kind      EventKind
	Code      uint32
	Modifiers Modifiers
	Text      string
}

// FocusKind distinguishes the two focus transitions.
type FocusKind uint8

const (
	Blurred FocusKind = iota + 1
	Focused
)

// FocusEvent is delivered to a node's focus listener when it gains or
// loses keyboard focus.
type FocusEvent struct {
	Kind   FocusKind
	Target types.FocusID
}

// Control exposes propagation state to a listener and lets it halt
// further propagation.
type Control struct {
	phase   Phase
	node    types.NodeID
	target  types.NodeID
	stopped bool
}

// Phase returns the phase the current listener is visited in.
func (c *Control) Phase() Phase { return c.phase }

// Node returns the node whose listener is currently running.
func (c *Control) Node() types.NodeID { return c.node }

// Target returns the hit-tested target of the event.
func (c *Control) Target() types.NodeID { return c.target }

// StopPropagation halts all remaining phases and nodes once the current
// listener returns.
func (c *Control) StopPropagation() { c.stopped = true }
