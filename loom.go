// Package loom is a retained reactive core for GPU-rendered user
// interfaces: an entity store for shared mutable state, an observer
// graph that turns state changes into redraw requests, and a per-frame
// dispatch tree that routes input events to handlers.
//
// The whole core is single-threaded by contract. One goroutine owns the
// App and drives it frame by frame: build, dispatch, repeat. What makes
// that safe against mid-frame structural changes is not locking but
// handles: everything refers to entities by id and re-resolves on every
// access, so a handler deleting state out from under a later handler
// produces an empty read, never a crash.
package loom

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/loomui/loom/dispatch"
	"github.com/loomui/loom/inspector"
	"github.com/loomui/loom/state"
	"github.com/loomui/loom/telemetry"
	"github.com/loomui/loom/types"
	"github.com/loomui/loom/widget"
)

// KeyCodeTab is the key code the app-level tab navigation reacts to.
const KeyCodeTab uint32 = 0x09

// BuildFunc is the render pass callback: it declares the frame's UI by
// reading entity state through the read-only context and mirroring the
// laid-out hierarchy into the tree builder.
type BuildFunc func(ctx *state.Context, b *dispatch.TreeBuilder) error

// App wires the core together and owns the frame loop state.
type App struct {
	cfg    AppConfig
	logger zerolog.Logger

	observers *state.Registry
	store     *state.Store
	widgets   *widget.Store
	focus     *dispatch.FocusManager
	ctx       *state.Context

	tree  *dispatch.Tree
	frame uint64

	inspector *inspector.Server

	customLogger   bool
	customConfig   bool
	entityCapacity int
	statsdEnabled  bool
}

// NewApp assembles an App from the environment configuration plus
// options. Options win over the environment.
func NewApp(opts ...AppOption) (*App, error) {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}

	if a.customConfig {
		if err := a.cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		cfg, err := LoadConfig()
		if err != nil {
			return nil, err
		}
		a.cfg = cfg
	}

	if !a.customLogger {
		level, err := zerolog.ParseLevel(a.cfg.LogLevel)
		if err != nil {
			return nil, eris.Wrap(err, "")
		}
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
		if a.cfg.LogPretty {
			logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}
		a.logger = logger
	}

	a.observers = state.NewRegistry(a.logger)
	a.store = state.NewStore(a.observers, a.logger)
	if a.entityCapacity > 0 {
		a.store.SetCapacity(a.entityCapacity)
	}
	a.widgets = widget.NewStore(a.logger)
	a.focus = dispatch.NewFocusManager(a.logger)
	a.ctx = state.NewContext(a.store, a.observers, a.logger)

	if a.cfg.StatsdAddress != "" {
		if err := telemetry.Init(a.cfg.StatsdAddress, a.cfg.statsdTagList()); err != nil {
			return nil, err
		}
		a.statsdEnabled = true
	}

	if a.cfg.InspectorEnabled {
		a.inspector = inspector.New(a.logger, inspector.WithPort(a.cfg.InspectorPort))
		if err := a.inspector.Start(); err != nil {
			return nil, err
		}
	}

	a.logger.Info().Str("log_level", a.cfg.LogLevel).Bool("inspector", a.cfg.InspectorEnabled).Msg("loom app created")
	return a, nil
}

// Context returns the app's root read-write context, for wiring up
// initial state before the first frame.
func (a *App) Context() *state.Context {
	return a.ctx
}

// Widgets returns the retained widget state store.
func (a *App) Widgets() *widget.Store {
	return a.widgets
}

// Tree returns the dispatch tree built by the last RenderFrame, or nil
// before the first frame.
func (a *App) Tree() *dispatch.Tree {
	return a.tree
}

// Frame returns the number of frames rendered so far.
func (a *App) Frame() uint64 {
	return a.frame
}

// NeedsRedraw reports whether any entity's dependents are still marked
// dirty. The platform loop uses it to skip frames entirely when nothing
// changed.
func (a *App) NeedsRedraw() bool {
	return a.observers.AnyDirty()
}

// RenderFrame runs one render pass: the build callback re-reads state
// through a read-only context (consuming dirty marks as it goes) and
// declares the frame's dispatch tree. The previous tree is discarded
// wholesale; focus carries over by id.
func (a *App) RenderFrame(viewport types.Rect, build BuildFunc) error {
	start := time.Now()
	a.frame++
	frameLogger := state.CreateFrameLogger(&a.logger, a.frame)

	a.widgets.BeginFrame()
	builder := dispatch.NewTreeBuilder(viewport, *frameLogger)
	buildErr := build(state.NewContext(a.store, a.observers, *frameLogger).ReadOnly(), builder)
	a.tree = builder.Build()
	a.focus.SyncTree(a.tree)
	if buildErr == nil {
		// Entities subscribe the top-level view via types.RootEntity;
		// nothing ever reads through that sentinel, so its latch is
		// satisfied by the frame itself. A failed build leaves it set and
		// the redraw pending.
		a.observers.Consume(types.RootEntity)
	}

	telemetry.EmitFrameStat(start, "render")
	telemetry.EmitEntityCount(a.store.Len())
	a.publishFrame(frameLogger)

	if buildErr != nil {
		return eris.Wrap(buildErr, "render pass failed")
	}
	return nil
}

// frameEvent is what the inspector's websocket clients receive once per
// frame.
type frameEvent struct {
	Kind     string `json:"kind"`
	Frame    uint64 `json:"frame"`
	Entities int    `json:"entities"`
	Nodes    int    `json:"nodes"`
	Dirty    int    `json:"dirty"`
}

func (a *App) publishFrame(logger *zerolog.Logger) {
	if a.inspector == nil {
		return
	}
	snap, err := inspector.Capture(a.frame, a.store, a.observers)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to capture inspector snapshot")
		return
	}
	a.inspector.Publish(snap)
	ev := frameEvent{
		Kind:     "frame",
		Frame:    a.frame,
		Entities: a.store.Len(),
		Nodes:    a.tree.Len(),
		Dirty:    a.observers.DirtyCount(),
	}
	if err := a.inspector.Emit(ev); err != nil {
		logger.Warn().Err(err).Msg("failed to emit frame event")
	}
	a.inspector.Flush()
}

// DispatchPointer routes a pointer event through the current tree.
// Before the first frame there is no tree and the event is ignored.
func (a *App) DispatchPointer(ev dispatch.PointerEvent) dispatch.Result {
	if a.tree == nil {
		return dispatch.Ignored
	}
	start := time.Now()
	frameLogger := state.CreateFrameLogger(&a.logger, a.frame)
	res := a.tree.DispatchPointer(state.NewContext(a.store, a.observers, *frameLogger), ev)
	telemetry.EmitFrameStat(start, "pointer")
	return res
}

// DispatchKey routes a key event to the focused node. A tab key that no
// listener consumed moves focus forward, or backward with shift held.
func (a *App) DispatchKey(ev dispatch.KeyEvent) dispatch.Result {
	if a.tree == nil {
		return dispatch.Ignored
	}
	start := time.Now()
	frameLogger := state.CreateFrameLogger(&a.logger, a.frame)
	ctx := state.NewContext(a.store, a.observers, *frameLogger)
	res := a.focus.DispatchKey(ctx, a.tree, ev)
	if res == dispatch.Ignored && ev.Kind == dispatch.KeyDown && ev.Code == KeyCodeTab {
		if ev.Modifiers.Has(dispatch.ModShift) {
			a.focus.FocusPrev(ctx)
		} else {
			a.focus.FocusNext(ctx)
		}
		res = dispatch.Consumed
	}
	telemetry.EmitFrameStat(start, "key")
	return res
}

// Focus moves keyboard focus to the element with the given id, if it
// exists in the current tree.
func (a *App) Focus(id types.FocusID) {
	a.focus.Focus(a.ctx, id)
}

// Blur clears keyboard focus.
func (a *App) Blur() {
	a.focus.BlurAll(a.ctx)
}

// FocusedElement returns the id of the focused element, or
// types.NilFocus.
func (a *App) FocusedElement() types.FocusID {
	return a.focus.Active()
}

// Shutdown stops the inspector and flushes metrics. The App must not be
// used afterwards.
func (a *App) Shutdown() error {
	if a.inspector != nil {
		if err := a.inspector.Shutdown(); err != nil {
			return err
		}
		a.inspector = nil
	}
	if a.statsdEnabled {
		if err := telemetry.Close(); err != nil {
			return err
		}
		a.statsdEnabled = false
	}
	a.logger.Info().Msg("loom app shut down")
	return nil
}
