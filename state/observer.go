package state

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/loomui/loom/types"
)

// Registry records which dependents need a redraw when a source entity
// changes. Edges are directed source -> dependent. The dependent side may
// be types.RootEntity, meaning "the top-level view".
//
// Dirtiness is a latch, not a queue: any number of Notify calls between
// two frames collapse into a single redraw of each dependent. The latch
// is consumed when the render pass re-reads the dependent.
type Registry struct {
	dependents map[types.EntityID]map[types.EntityID]struct{}
	sources    map[types.EntityID]map[types.EntityID]struct{}
	dirty      map[types.EntityID]struct{}
	logger     zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		dependents: make(map[types.EntityID]map[types.EntityID]struct{}),
		sources:    make(map[types.EntityID]map[types.EntityID]struct{}),
		dirty:      make(map[types.EntityID]struct{}),
		logger:     logger.With().Str("component", "observer_registry").Logger(),
	}
}

// Subscribe records that dependent must be notified when source changes.
// Subscribing twice is a no-op.
func (r *Registry) Subscribe(source, dependent types.EntityID) {
	if source == types.NilEntity || dependent == types.NilEntity || source == dependent {
		return
	}
	deps, ok := r.dependents[source]
	if !ok {
		deps = make(map[types.EntityID]struct{})
		r.dependents[source] = deps
	}
	if _, dup := deps[dependent]; dup {
		return
	}
	deps[dependent] = struct{}{}
	srcs, ok := r.sources[dependent]
	if !ok {
		srcs = make(map[types.EntityID]struct{})
		r.sources[dependent] = srcs
	}
	srcs[source] = struct{}{}
}

// Notify marks every direct dependent of source dirty and returns how
// many were marked. Fan-out is deliberately one level deep: a dependent
// that mutates state of its own must call Notify for its own id, so
// propagation stays explicit and its cost stays bounded.
func (r *Registry) Notify(source types.EntityID) int {
	deps := r.dependents[source]
	for dep := range deps {
		r.dirty[dep] = struct{}{}
	}
	if len(deps) > 0 {
		r.logger.Trace().Stringer("source", source).Int("dependents", len(deps)).Msg("notify")
	}
	return len(deps)
}

// UnsubscribeAll removes every edge touching id, in either role. The
// entity store calls this on Remove; it is also safe to call directly.
func (r *Registry) UnsubscribeAll(id types.EntityID) {
	for dep := range r.dependents[id] {
		delete(r.sources[dep], id)
		if len(r.sources[dep]) == 0 {
			delete(r.sources, dep)
		}
	}
	delete(r.dependents, id)
	for src := range r.sources[id] {
		delete(r.dependents[src], id)
		if len(r.dependents[src]) == 0 {
			delete(r.dependents, src)
		}
	}
	delete(r.sources, id)
	delete(r.dirty, id)
}

// IsDirty reports whether id has a pending redraw.
func (r *Registry) IsDirty(id types.EntityID) bool {
	_, ok := r.dirty[id]
	return ok
}

// Consume clears id's dirty latch and reports whether it was set. The
// render pass calls this as it re-reads each dependent.
func (r *Registry) Consume(id types.EntityID) bool {
	_, ok := r.dirty[id]
	if ok {
		delete(r.dirty, id)
	}
	return ok
}

// AnyDirty reports whether any dependent has a pending redraw. This is
// the renderer's skip-frame signal.
func (r *Registry) AnyDirty() bool {
	return len(r.dirty) > 0
}

// DirtyCount returns the number of latched dependents.
func (r *Registry) DirtyCount() int {
	return len(r.dirty)
}

// HasEdge reports whether the exact edge exists.
func (r *Registry) HasEdge(source, dependent types.EntityID) bool {
	_, ok := r.dependents[source][dependent]
	return ok
}

// EdgeCount returns the total number of edges.
func (r *Registry) EdgeCount() int {
	n := 0
	for _, deps := range r.dependents {
		n += len(deps)
	}
	return n
}

// Dependents returns source's direct dependents in ascending id order.
func (r *Registry) Dependents(source types.EntityID) []types.EntityID {
	deps := r.dependents[source]
	if len(deps) == 0 {
		return nil
	}
	out := make([]types.EntityID, 0, len(deps))
	for dep := range deps {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
