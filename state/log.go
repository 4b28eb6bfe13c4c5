package state

import (
	"github.com/rs/zerolog"

	"github.com/loomui/loom/types"
)

func loadEntityIntoArrayLogger(id types.EntityID, name string, arrayLogger *zerolog.Array) *zerolog.Array {
	dictLogger := zerolog.Dict()
	dictLogger = dictLogger.Uint64("entity_id", uint64(id))
	dictLogger = dictLogger.Str("type", name)
	return arrayLogger.Dict(dictLogger)
}

// Entities logs every live entity in the store at the given level.
func Entities(logger *zerolog.Logger, store *Store, level zerolog.Level) {
	event := logger.WithLevel(level)
	event.Int("total_entities", store.Len())
	arrayLogger := zerolog.Arr()
	store.Each(func(id types.EntityID, name string, _ any) {
		arrayLogger = loadEntityIntoArrayLogger(id, name, arrayLogger)
	})
	event.Array("entities", arrayLogger)
	event.Send()
}

// Edges logs the observer edges originating from each live entity.
func Edges(logger *zerolog.Logger, store *Store, registry *Registry, level zerolog.Level) {
	event := logger.WithLevel(level)
	event.Int("total_edges", registry.EdgeCount())
	event.Int("dirty", registry.DirtyCount())
	arrayLogger := zerolog.Arr()
	store.Each(func(id types.EntityID, _ string, _ any) {
		for _, dep := range registry.Dependents(id) {
			dictLogger := zerolog.Dict()
			dictLogger = dictLogger.Uint64("source", uint64(id))
			dictLogger = dictLogger.Uint64("dependent", uint64(dep))
			arrayLogger = arrayLogger.Dict(dictLogger)
		}
	})
	event.Array("edges", arrayLogger)
	event.Send()
}

// CreateFrameLogger creates a sub logger tagged with the frame number, so
// a frame's dispatch and render activity can be followed as one trace.
func CreateFrameLogger(logger *zerolog.Logger, frame uint64) *zerolog.Logger {
	newLogger := logger.With().Uint64("frame", frame).Logger()
	return &newLogger
}
