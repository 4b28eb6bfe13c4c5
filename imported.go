package loom

import (
	"github.com/loomui/loom/dispatch"
	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

type (
	// EntityID is a generational handle to an entity in the store.
	EntityID = types.EntityID
	// Context is the capability object handlers and the render pass
	// receive.
	Context      = state.Context
	HandlerRef   = state.HandlerRef
	Arg          = state.Arg
	Point        = types.Point
	Rect         = types.Rect
	PointerEvent = dispatch.PointerEvent
	KeyEvent     = dispatch.KeyEvent
	FocusEvent   = dispatch.FocusEvent
	TreeBuilder  = dispatch.TreeBuilder
)

var (
	NewRect = types.NewRect

	OnPointer      = dispatch.OnPointer
	OnClick        = dispatch.OnClick
	OnKey          = dispatch.OnKey
	OnClickOutside = dispatch.OnClickOutside
	Focusable      = dispatch.Focusable
	WithZ          = dispatch.WithZ
)

const (
	NilEntity  = types.NilEntity
	RootEntity = types.RootEntity
	NilFocus   = types.NilFocus

	PointerDown = dispatch.PointerDown
	PointerUp   = dispatch.PointerUp
	PointerMove = dispatch.PointerMove
	Scroll      = dispatch.Scroll
	KeyDown     = dispatch.KeyDown
	KeyUp       = dispatch.KeyUp
	TextInput   = dispatch.TextInput

	Ignored  = dispatch.Ignored
	Consumed = dispatch.Consumed
)
