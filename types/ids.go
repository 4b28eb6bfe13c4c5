package types

import "fmt"

// EntityID is an opaque handle to a slot in the entity store. The low 32
// bits are the slot index and the high 32 bits are the slot's generation at
// the time the handle was issued. An EntityID is identity, not a pointer:
// it stays valid across storage growth and is cheaply copyable, but it does
// not keep the entity alive.
type EntityID uint64

// NilEntity is the "no entity" sentinel. Generation 0 is never issued, so
// the zero value is always invalid.
const NilEntity EntityID = 0

// RootEntity marks the top-level view as an observer dependent. It is
// reserved and can never be returned by the store.
const RootEntity EntityID = ^EntityID(0)

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32 {
	return uint32(id)
}

func (id EntityID) Generation() uint32 {
	return uint32(id >> 32)
}

func (id EntityID) IsNil() bool {
	return id == NilEntity
}

func (id EntityID) String() string {
	if id == NilEntity {
		return "entity(nil)"
	}
	if id == RootEntity {
		return "entity(root)"
	}
	return fmt.Sprintf("entity(%d:%d)", id.Index(), id.Generation())
}

// Entity is a typed wrapper around EntityID. The type parameter is a
// compile-time tag only; there is no runtime payload beyond the id.
type Entity[T any] struct {
	ID EntityID
}

func (e Entity[T]) IsNil() bool {
	return e.ID.IsNil()
}

// NodeID identifies a node within a single dispatch tree build. Node ids
// are indices into the frame's node slice and must not be held across
// frames.
type NodeID int

// NilNode is the "no node" sentinel for parent links and hit-test misses.
const NilNode NodeID = -1

// FocusID identifies a focusable element. Unlike NodeID it must be stable
// across frames for the same logical element, or focus resets.
type FocusID uint64

const NilFocus FocusID = 0
