package state

import (
	"github.com/loomui/loom/types"
)

// ArgKind discriminates the payload carried by an Arg.
type ArgKind uint8

const (
	ArgNone ArgKind = iota
	ArgInt
	ArgFloat
	ArgBool
	ArgString
	ArgBoxed
)

// Arg is the small tagged value a HandlerRef carries to its callback. The
// common scalar cases travel inline so a HandlerRef stays a flat,
// copyable value with no allocation; anything larger rides in Boxed.
type Arg struct {
	kind  ArgKind
	i     int64
	f     float64
	b     bool
	s     string
	boxed any
}

func NoArg() Arg             { return Arg{} }
func IntArg(v int64) Arg     { return Arg{kind: ArgInt, i: v} }
func FloatArg(v float64) Arg { return Arg{kind: ArgFloat, f: v} }
func BoolArg(v bool) Arg     { return Arg{kind: ArgBool, b: v} }
func StringArg(v string) Arg { return Arg{kind: ArgString, s: v} }
func BoxedArg(v any) Arg     { return Arg{kind: ArgBoxed, boxed: v} }

func (a Arg) Kind() ArgKind { return a.kind }

func (a Arg) Int() (int64, bool) {
	return a.i, a.kind == ArgInt
}

func (a Arg) Float() (float64, bool) {
	return a.f, a.kind == ArgFloat
}

func (a Arg) Bool() (bool, bool) {
	return a.b, a.kind == ArgBool
}

func (a Arg) String() (string, bool) {
	return a.s, a.kind == ArgString
}

func (a Arg) Boxed() (any, bool) {
	return a.boxed, a.kind == ArgBoxed
}

// HandlerFunc is the erased callback shape stored in a HandlerRef. bound
// is the entity the handler was created against; the callback re-resolves
// it by handle, since the entity may have been removed between binding
// and invocation.
type HandlerFunc func(ctx *Context, bound types.EntityID, arg Arg)

// HandlerRef is a flat, copyable, deferred callback bound to an entity.
// It is immutable once constructed; Invoke is its only side-effecting
// operation. Widgets hold HandlerRefs across the frame in which they were
// bound and the dispatch tree invokes them when an event lands.
type HandlerRef struct {
	fn    HandlerFunc
	bound types.EntityID
	arg   Arg
}

func NewHandler(bound types.EntityID, arg Arg, fn HandlerFunc) HandlerRef {
	return HandlerRef{fn: fn, bound: bound, arg: arg}
}

// IsZero reports whether the ref carries no callback. Invoking a zero ref
// is a no-op.
func (h HandlerRef) IsZero() bool {
	return h.fn == nil
}

// Bound returns the entity the handler was created against.
func (h HandlerRef) Bound() types.EntityID {
	return h.bound
}

// WithArg returns a copy of the ref carrying a different argument. The
// original is unchanged.
func (h HandlerRef) WithArg(arg Arg) HandlerRef {
	h.arg = arg
	return h
}

// Invoke runs the callback with a context rebound to the handler's
// entity. If the entity was removed since binding, the callback still
// runs; its state lookups come back empty and it is expected to
// early-return.
func (h HandlerRef) Invoke(ctx *Context) {
	if h.fn == nil {
		return
	}
	h.fn(ctx.For(h.bound), h.bound, h.arg)
}
