package state

import (
	"math"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/loomui/loom/types"
)

// slot is one cell of the entity table. The generation increments every
// time the slot is freed, so a handle minted for an earlier occupant can
// never resolve against a later one. data always holds a *T for the
// recorded dataType; it is destroyed (nilled) on free, before any reuse.
type slot struct {
	generation uint32
	dataType   reflect.Type
	data       any
	alive      bool
	busy       bool
}

// Store is the entity table: the single owner of all shared UI state.
// Everything else refers to entities by handle and re-resolves through the
// store on every access, which is what keeps the single-threaded frame
// loop safe against mid-event structural changes.
//
// Store is not safe for concurrent use. All access must happen on the
// frame loop goroutine.
type Store struct {
	slots     []slot
	free      []uint32
	liveCount int
	capacity  int
	observers *Registry
	logger    zerolog.Logger
}

// NewStore creates an empty store wired to the given observer registry.
// Removing an entity cascades into the registry, deleting every edge that
// references the entity in either role.
func NewStore(observers *Registry, logger zerolog.Logger) *Store {
	return &Store{
		capacity:  math.MaxUint32,
		observers: observers,
		logger:    logger.With().Str("component", "entity_store").Logger(),
	}
}

// SetCapacity bounds the number of slots the store will allocate. Create
// reports ErrStoreFull once the bound is reached. The default is
// effectively unbounded.
func (s *Store) SetCapacity(n int) {
	s.capacity = n
}

// Len returns the number of live entities.
func (s *Store) Len() int {
	return s.liveCount
}

// Contains reports whether the handle currently resolves to a live slot.
func (s *Store) Contains(id types.EntityID) bool {
	_, ok := s.resolve(id)
	return ok
}

// TypeName returns the registered type name of a live entity.
func (s *Store) TypeName(id types.EntityID) (string, bool) {
	sl, ok := s.resolve(id)
	if !ok {
		return "", false
	}
	return typeName(sl.dataType), true
}

// Each visits every live entity in slot order.
func (s *Store) Each(fn func(id types.EntityID, typeName string, value any)) {
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.alive {
			continue
		}
		fn(types.NewEntityID(uint32(i), sl.generation), typeName(sl.dataType), sl.data)
	}
}

// Remove marks the slot dead, destroys the payload, bumps the generation
// so outstanding handles go stale, and cascades into the observer
// registry: every edge with this id as source or dependent is deleted. A
// UI element that goes away never leaves orphaned subscriptions behind.
//
// Removing an already-dead or stale handle returns ErrEntityDoesNotExist;
// callers routinely ignore it, since a vanished entity is normal during a
// frame.
func (s *Store) Remove(id types.EntityID) error {
	sl, ok := s.resolve(id)
	if !ok {
		return ErrEntityDoesNotExist
	}
	sl.alive = false
	sl.busy = false
	sl.data = nil
	sl.dataType = nil
	sl.generation++
	if sl.generation == 0 {
		// Generation wrapped. Skip 0 so the nil sentinel stays invalid.
		sl.generation = 1
	}
	s.liveCount--
	s.free = append(s.free, id.Index())
	if s.observers != nil {
		s.observers.UnsubscribeAll(id)
	}
	s.logger.Debug().Stringer("entity", id).Msg("entity removed")
	return nil
}

// resolve performs the alive + generation check and returns the slot. The
// type check happens in the generic accessors, which know T.
func (s *Store) resolve(id types.EntityID) (*slot, bool) {
	if id == types.NilEntity || id == types.RootEntity {
		return nil, false
	}
	idx := id.Index()
	if int(idx) >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[idx]
	if !sl.alive || sl.generation != id.Generation() {
		return nil, false
	}
	return sl, true
}

func (s *Store) create(t reflect.Type, data any) (types.EntityID, error) {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		if len(s.slots) >= s.capacity {
			return types.NilEntity, ErrStoreFull
		}
		s.slots = append(s.slots, slot{})
		idx = uint32(len(s.slots) - 1)
	}
	sl := &s.slots[idx]
	if sl.generation == 0 {
		sl.generation = 1
	}
	sl.dataType = t
	sl.data = data
	sl.alive = true
	s.liveCount++
	id := types.NewEntityID(idx, sl.generation)
	s.logger.Debug().Stringer("entity", id).Str("type", typeName(t)).Msg("entity created")
	return id, nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	return name
}

// Create allocates a new entity holding a copy of value and returns its
// typed handle. Freed slots are reused before the table grows.
func Create[T any](s *Store, value T) (types.Entity[T], error) {
	data := &value
	id, err := s.create(reflect.TypeOf(value), data)
	if err != nil {
		return types.Entity[T]{}, err
	}
	return types.Entity[T]{ID: id}, nil
}

// Read returns a view of the entity's state, or (nil, false) if the slot
// is dead, the handle's generation is stale, or the slot holds a
// different type. The triple check is the safety mechanism that stands in
// for lifetime checking: stale access is silent, never a crash.
func Read[T any](s *Store, e types.Entity[T]) (*T, bool) {
	sl, ok := s.resolve(e.ID)
	if !ok {
		return nil, false
	}
	v, ok := sl.data.(*T)
	if !ok {
		// A live slot with the wrong type tag means a handle was forged or
		// mislabeled somewhere; worth a trace even though the access
		// itself stays silent.
		s.logger.Debug().
			Err(ErrTypeMismatch).
			Stringer("entity", e.ID).
			Str("slot_type", typeName(sl.dataType)).
			Msg("typed read rejected")
		return nil, false
	}
	return v, true
}

// Write returns a mutable view of the entity's state under the same
// validity check as Read. The caller must not hold any other view of the
// same entity while using the returned pointer; that discipline is by
// convention, not runtime-enforced. Use Update for a checked, scoped
// mutation.
func Write[T any](s *Store, e types.Entity[T]) (*T, bool) {
	return Read(s, e)
}

// Update runs fn against a mutable view of the entity. The slot is marked
// busy for the duration, and a re-entrant Update of the same slot panics:
// that is a programming error (two simultaneous mutable views), not a
// recoverable condition. Returns false under the same conditions Read
// returns nil.
func Update[T any](s *Store, e types.Entity[T], fn func(*T)) bool {
	sl, ok := s.resolve(e.ID)
	if !ok {
		return false
	}
	v, ok := sl.data.(*T)
	if !ok {
		return false
	}
	if sl.busy {
		panic("state: re-entrant update of " + e.ID.String())
	}
	sl.busy = true
	// fn may create entities, growing s.slots and moving the slot to a new
	// backing array; the clear must re-resolve by handle, not reuse sl.
	defer func() {
		if cur, ok := s.resolve(e.ID); ok {
			cur.busy = false
		}
	}()
	fn(v)
	return true
}
