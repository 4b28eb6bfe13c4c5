package inspector

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/loomui/loom/codec"
	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

// EntityRecord is one entity's state as the inspector presents it.
type EntityRecord struct {
	ID    types.EntityID  `json:"id"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Dirty bool            `json:"dirty"`
}

// EdgeRecord is one observer edge: dependent gets notified when source
// changes.
type EdgeRecord struct {
	Source    types.EntityID `json:"source"`
	Dependent types.EntityID `json:"dependent"`
}

// Snapshot is an immutable copy of the state the frame loop publishes to
// the inspector once per frame. HTTP handlers only ever read snapshots,
// never the live store, so the server goroutines stay off the frame
// loop's data.
type Snapshot struct {
	Frame    uint64         `json:"frame"`
	Entities []EntityRecord `json:"entities"`
	Edges    []EdgeRecord   `json:"edges"`

	// one live value per state type, for schema reflection
	samples map[string]any
}

// Capture serializes the live state into a snapshot. It must run on the
// frame loop goroutine.
func Capture(frame uint64, store *state.Store, observers *state.Registry) (*Snapshot, error) {
	snap := &Snapshot{
		Frame:    frame,
		Entities: make([]EntityRecord, 0, store.Len()),
		Edges:    make([]EdgeRecord, 0, observers.EdgeCount()),
		samples:  map[string]any{},
	}
	var encodeErr error
	store.Each(func(id types.EntityID, typeName string, value any) {
		if encodeErr != nil {
			return
		}
		data, err := codec.Encode(value)
		if err != nil {
			encodeErr = eris.Wrapf(err, "entity %s (%s)", id, typeName)
			return
		}
		snap.Entities = append(snap.Entities, EntityRecord{
			ID:    id,
			Type:  typeName,
			Data:  data,
			Dirty: observers.IsDirty(id),
		})
		if _, ok := snap.samples[typeName]; !ok {
			snap.samples[typeName] = value
		}
	})
	if encodeErr != nil {
		return nil, encodeErr
	}
	store.Each(func(id types.EntityID, _ string, _ any) {
		for _, dep := range observers.Dependents(id) {
			snap.Edges = append(snap.Edges, EdgeRecord{Source: id, Dependent: dep})
		}
	})
	return snap, nil
}
