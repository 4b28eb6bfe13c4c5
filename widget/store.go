// Package widget stores retained widget state: the mutable internals
// (text cursors, scroll offsets, composition buffers) that must outlive a
// single render pass while the widgets themselves are rebuilt every
// frame.
package widget

import (
	"reflect"
	"sort"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/loomui/loom/codec"
)

var ErrBadSnapshot = eris.New("widget snapshot is malformed")

type entry struct {
	value   any
	raw     json.RawMessage
	touched bool
}

// Store maps stable widget ids to retained state. Ids must stay the same
// across frames for the same logical widget instance; that is a caller
// obligation, not something the store can enforce — an id that changes
// simply reads as a fresh widget and its old state is swept.
//
// Store is not safe for concurrent use; like everything else in the
// core, it belongs to the frame loop goroutine.
type Store struct {
	entries map[string]*entry
	logger  zerolog.Logger
}

func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		logger:  logger.With().Str("component", "widget_store").Logger(),
	}
}

// Len returns the number of retained widgets.
func (s *Store) Len() int {
	return len(s.entries)
}

// BeginFrame clears the per-frame touch marks. The frame loop calls it
// before the render pass; widgets looked up during the pass are marked,
// and Sweep can then drop the rest.
func (s *Store) BeginFrame() {
	for _, e := range s.entries {
		e.touched = false
	}
}

// Sweep removes every widget not looked up since BeginFrame and returns
// how many were dropped. Calling it is optional; an app with stable pages
// may never need to.
func (s *Store) Sweep() int {
	n := 0
	for id, e := range s.entries {
		if !e.touched {
			delete(s.entries, id)
			n++
		}
	}
	if n > 0 {
		s.logger.Debug().Int("swept", n).Msg("swept unused widget state")
	}
	return n
}

// Get returns the retained state for id, creating it with init on first
// lookup. A type change under an existing id resets the state: the store
// trusts the id, so two widgets sharing one id is the caller's bug and is
// logged.
func Get[T any](s *Store, id string, init func() *T) *T {
	e, ok := s.entries[id]
	if !ok {
		e = &entry{value: init()}
		s.entries[id] = e
	}
	if e.raw != nil {
		// State restored from a snapshot decodes lazily, on the first
		// lookup that knows the concrete type.
		v, err := codec.Decode[T](e.raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("widget_id", id).Msg("discarding undecodable widget snapshot")
			e.value = init()
		} else {
			e.value = &v
		}
		e.raw = nil
	}
	v, ok := e.value.(*T)
	if !ok {
		s.logger.Warn().
			Str("widget_id", id).
			Str("have", reflect.TypeOf(e.value).String()).
			Msg("widget id reused with a different state type, resetting")
		v = init()
		e.value = v
	}
	e.touched = true
	return v
}

// Snapshot serializes every widget's state keyed by id. Together with
// Restore it lets an application persist scroll positions and cursors
// across sessions.
func (s *Store) Snapshot() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.entries))
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := s.entries[id]
		if e.raw != nil {
			out[id] = e.raw
			continue
		}
		bz, err := codec.Encode(e.value)
		if err != nil {
			return nil, eris.Wrapf(err, "widget %q", id)
		}
		out[id] = bz
	}
	return codec.Encode(out)
}

// Restore replaces the store's contents with a snapshot produced by
// Snapshot. Values decode lazily on first Get, since only the widget
// knows its concrete state type.
func (s *Store) Restore(data []byte) error {
	decoded, err := codec.Decode[map[string]json.RawMessage](data)
	if err != nil {
		return eris.Wrap(ErrBadSnapshot, err.Error())
	}
	s.entries = make(map[string]*entry, len(decoded))
	for id, raw := range decoded {
		s.entries[id] = &entry{raw: raw}
	}
	return nil
}
