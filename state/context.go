package state

import (
	"github.com/rs/zerolog"

	"github.com/loomui/loom/types"
)

// Context is the capability object handed to handlers and to the render
// pass. It is scoped to at most one bound entity at a time and carries
// the store, registry and logger so neither widgets nor handlers reach
// for globals. Contexts are short-lived: the framework constructs one per
// dispatch or per frame and derived contexts share the same underlying
// store.
//
// The render pass receives a read-only context; mutation through it
// fails with ErrReadOnlyContext.
type Context struct {
	store     *Store
	observers *Registry
	logger    zerolog.Logger
	bound     types.EntityID
	readOnly  bool
}

func NewContext(store *Store, observers *Registry, logger zerolog.Logger) *Context {
	return &Context{
		store:     store,
		observers: observers,
		logger:    logger,
		bound:     types.NilEntity,
	}
}

// For returns a derived context bound to id.
func (c *Context) For(id types.EntityID) *Context {
	derived := *c
	derived.bound = id
	return &derived
}

// ReadOnly returns a derived context that rejects mutation.
func (c *Context) ReadOnly() *Context {
	derived := *c
	derived.readOnly = true
	return &derived
}

func (c *Context) Bound() types.EntityID { return c.bound }

func (c *Context) IsReadOnly() bool { return c.readOnly }

func (c *Context) Logger() *zerolog.Logger { return &c.logger }

func (c *Context) Store() *Store { return c.store }

// Subscribe records that dependent needs a redraw when source changes.
func (c *Context) Subscribe(source, dependent types.EntityID) {
	c.observers.Subscribe(source, dependent)
}

// Observe subscribes the bound entity to source.
func (c *Context) Observe(source types.EntityID) {
	c.observers.Subscribe(source, c.bound)
}

// Notify marks id's direct dependents dirty.
func (c *Context) Notify(id types.EntityID) {
	c.observers.Notify(id)
}

// NotifySelf marks the bound entity's dependents dirty.
func (c *Context) NotifySelf() {
	c.observers.Notify(c.bound)
}

// Remove destroys an entity and cascades its observer edges. Handlers use
// this to tear down child state ("delete task"); a stale id reports
// ErrEntityDoesNotExist, which callers normally ignore.
func (c *Context) Remove(id types.EntityID) error {
	if c.readOnly {
		return ErrReadOnlyContext
	}
	if err := c.store.Remove(id); err != nil {
		return err
	}
	c.observers.Notify(id)
	return nil
}

// CreateEntity allocates a new entity through the context. Handler bodies
// use this to spawn child state ("add counter") while staying oblivious
// to storage details.
func CreateEntity[T any](c *Context, value T) (types.Entity[T], error) {
	if c.readOnly {
		return types.Entity[T]{}, ErrReadOnlyContext
	}
	return Create(c.store, value)
}

// ReadEntity returns a read view of e, or (nil, false) when the handle is
// stale, the slot dead, or the type wrong. A read through a read-only
// (render pass) context consumes the entity's dirty latch: the pass is
// re-reading, so the pending redraw is satisfied. Reads during event
// dispatch leave the latch alone.
func ReadEntity[T any](c *Context, e types.Entity[T]) (*T, bool) {
	v, ok := Read(c.store, e)
	if ok && c.readOnly {
		c.observers.Consume(e.ID)
	}
	return v, ok
}

// WriteEntity returns a mutable view of e under the same validity checks
// as ReadEntity. It does not notify; prefer UpdateEntity, which does.
func WriteEntity[T any](c *Context, e types.Entity[T]) (*T, bool) {
	if c.readOnly {
		return nil, false
	}
	return Write(c.store, e)
}

// UpdateEntity mutates e through fn and then notifies e's dependents.
// This is the pure state-mutation path: user code never needs an explicit
// notify after it. A stale handle returns ErrEntityDoesNotExist and fn is
// not called; handler bodies treat that as "nothing to do".
func UpdateEntity[T any](c *Context, e types.Entity[T], fn func(*T)) error {
	if c.readOnly {
		return ErrReadOnlyContext
	}
	if !Update(c.store, e, fn) {
		return ErrEntityDoesNotExist
	}
	c.observers.Notify(e.ID)
	return nil
}

// BindHandler wraps fn into a HandlerRef bound to the context's entity.
// The ref can be invoked in a later dispatch; fn receives a context
// rebound to the entity plus its typed handle, and must early-return if
// the entity has since been removed (its reads will come back empty).
func BindHandler[T any](c *Context, fn func(ctx *Context, e types.Entity[T], arg Arg)) HandlerRef {
	return NewHandler(c.bound, NoArg(), func(ctx *Context, bound types.EntityID, arg Arg) {
		fn(ctx, types.Entity[T]{ID: bound}, arg)
	})
}

// HandlerFor is BindHandler for an explicit entity handle rather than the
// context's bound entity.
func HandlerFor[T any](e types.Entity[T], fn func(ctx *Context, e types.Entity[T], arg Arg)) HandlerRef {
	return NewHandler(e.ID, NoArg(), func(ctx *Context, bound types.EntityID, arg Arg) {
		fn(ctx, types.Entity[T]{ID: bound}, arg)
	})
}
