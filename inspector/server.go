// Package inspector exposes the toolkit's live state over HTTP for
// debugging: entity dumps filtered by query expressions, JSON schemas of
// the registered state types, and a websocket stream of frame events.
package inspector

import (
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/loomui/loom/codec"
	"github.com/loomui/loom/query"
)

const defaultPort = "7171"

type Server struct {
	app    *fiber.App
	hub    *EventHub
	logger zerolog.Logger
	port   string

	running       atomic.Bool
	shutdownMutex sync.Mutex

	mu       sync.RWMutex
	snapshot *Snapshot
	schemas  map[string]*jsonschema.Schema
}

func New(logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		logger:  logger.With().Str("component", "inspector").Logger(),
		port:    defaultPort,
		schemas: map[string]*jsonschema.Schema{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewEventHub(s.logger)
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.app.Get("/health", s.getHealth)
	s.app.Get("/entities", s.getEntities)
	s.app.Get("/schema", s.getSchema)
	s.app.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return eris.Wrap(c.Next(), "")
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/events", websocket.New(s.hub.handleConnection))
}

// Publish installs the frame's snapshot as the one the HTTP handlers
// serve. Schemas for state types not seen before are reflected here,
// once per type.
func (s *Server) Publish(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	for name, sample := range snap.samples {
		if _, ok := s.schemas[name]; ok {
			continue
		}
		s.schemas[name] = jsonschema.Reflect(sample)
	}
}

// Emit queues a frame event for the websocket clients. Events emitted
// after Shutdown are dropped.
func (s *Server) Emit(event any) error {
	if s.hub == nil {
		return nil
	}
	return s.hub.Emit(event)
}

// Flush pushes queued events out. Called once per frame.
func (s *Server) Flush() {
	if s.hub == nil {
		return
	}
	s.hub.Flush()
}

// ConnectionCount reports the number of connected websocket clients.
func (s *Server) ConnectionCount() int {
	if s.hub == nil {
		return 0
	}
	return s.hub.ConnectionCount()
}

type GetHealthResponse struct {
	IsServerRunning bool   `json:"isServerRunning"`
	Frame           uint64 `json:"frame"`
	EntityCount     int    `json:"entityCount"`
	ConnectionCount int    `json:"connectionCount"`
}

func (s *Server) getHealth(ctx *fiber.Ctx) error {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	res := GetHealthResponse{
		IsServerRunning: s.running.Load(),
		ConnectionCount: s.ConnectionCount(),
	}
	if snap != nil {
		res.Frame = snap.Frame
		res.EntityCount = len(snap.Entities)
	}
	return ctx.JSON(res)
}

type GetEntitiesResponse struct {
	Frame   uint64         `json:"frame"`
	Results []EntityRecord `json:"results"`
}

// getEntities serves the last published snapshot, filtered by the q
// query parameter. An absent q means ALL(); pretty=true indents the
// dump for reading in a terminal.
func (s *Server) getEntities(ctx *fiber.Ctx) error {
	q := ctx.Query("q", "ALL()")
	pred, err := query.Parse(q)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	res := GetEntitiesResponse{Results: make([]EntityRecord, 0)}
	if snap != nil {
		res.Frame = snap.Frame
		for _, rec := range snap.Entities {
			if pred(rec.Type) {
				res.Results = append(res.Results, rec)
			}
		}
	}
	if ctx.QueryBool("pretty") {
		bz, err := codec.EncodeIndent(res)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return ctx.Send(bz)
	}
	return ctx.JSON(res)
}

// getSchema serves the JSON schema of every state type published so
// far, keyed by type name.
func (s *Server) getSchema(ctx *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		out[name] = s.schemas[name]
	}
	return ctx.JSON(out)
}

// Serve starts accepting connections on the configured listener. It
// blocks until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.running.Store(true)
	defer s.running.Store(false)
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("inspector listening")
	return eris.Wrap(s.app.Listener(ln), "inspector server failed")
}

// Start listens on the configured port in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return eris.Wrapf(err, "failed to listen on port %s", s.port)
	}
	go func() {
		if err := s.Serve(ln); err != nil {
			s.logger.Error().Err(err).Msg("inspector server stopped")
		}
	}()
	return nil
}

// Shutdown stops the HTTP server and the event hub. Safe to call more
// than once.
func (s *Server) Shutdown() error {
	s.shutdownMutex.Lock()
	defer s.shutdownMutex.Unlock()
	if s.running.Load() {
		if err := s.app.Shutdown(); err != nil {
			return eris.Wrap(err, "")
		}
	}
	if s.hub != nil {
		s.hub.Shutdown()
		s.hub = nil
	}
	s.logger.Info().Msg("inspector shut down")
	return nil
}

// Test routes a request through the app without the network, for tests.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req)
}
