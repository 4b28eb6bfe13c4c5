package inspector

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/loomui/loom/codec"
)

const (
	shutdownPollInterval = 200 * time.Millisecond
	writeDeadline        = 5 * time.Second
)

// connAndDone pairs a websocket connection with a channel the hub loop
// uses to signal the web handler once the registration took effect.
type connAndDone struct {
	id   uuid.UUID
	conn *websocket.Conn
	done chan bool
}

// EventHub fans frame events out to every connected inspector client.
// Events queue up during a frame and go out together on Flush, so a
// client always sees a frame's worth of events as one burst.
//
// All connection state lives inside the Run loop; the exported methods
// only talk to it over channels, which keeps the hub safe to call from
// both the frame loop and fiber's handler goroutines.
type EventHub struct {
	connections    map[uuid.UUID]*websocket.Conn
	broadcast      chan []byte
	getQueueLength chan chan int
	getConnCount   chan chan int
	flush          chan bool
	register       chan connAndDone
	unregister     chan connAndDone
	shutdown       chan bool
	queue          [][]byte
	isRunning      atomic.Bool
	logger         zerolog.Logger
}

func NewEventHub(logger zerolog.Logger) *EventHub {
	hub := &EventHub{
		connections:    map[uuid.UUID]*websocket.Conn{},
		broadcast:      make(chan []byte),
		getQueueLength: make(chan chan int),
		getConnCount:   make(chan chan int),
		flush:          make(chan bool),
		register:       make(chan connAndDone),
		unregister:     make(chan connAndDone),
		shutdown:       make(chan bool),
		queue:          make([][]byte, 0),
		logger:         logger.With().Str("component", "event_hub").Logger(),
	}
	go hub.Run()
	return hub
}

func (eh *EventHub) QueueLength() int {
	ch := make(chan int)
	eh.getQueueLength <- ch
	return <-ch
}

func (eh *EventHub) ConnectionCount() int {
	ch := make(chan int)
	eh.getConnCount <- ch
	return <-ch
}

// Emit queues an event for the next Flush. The event must be JSON
// serializable.
func (eh *EventHub) Emit(event any) error {
	data, err := codec.Encode(event)
	if err != nil {
		return eris.Wrap(err, "events must be json serializable")
	}
	eh.broadcast <- data
	return nil
}

// Flush writes every queued event to every connection and clears the
// queue. The frame loop calls it once per frame, after dispatch.
func (eh *EventHub) Flush() {
	eh.flush <- true
}

func (eh *EventHub) registerConnection(id uuid.UUID, ws *websocket.Conn) {
	done := make(chan bool)
	eh.register <- connAndDone{id: id, conn: ws, done: done}
	<-done
}

func (eh *EventHub) unregisterConnection(id uuid.UUID) {
	done := make(chan bool)
	eh.unregister <- connAndDone{id: id, done: done}
	<-done
}

// Shutdown stops the hub loop and closes every connection. It blocks
// until the loop has fully exited.
func (eh *EventHub) Shutdown() {
	eh.shutdown <- true
	for eh.isRunning.Load() {
		time.Sleep(shutdownPollInterval)
	}
}

func (eh *EventHub) Run() {
	if eh.isRunning.Load() {
		return
	}
	eh.isRunning.Store(true)
	drop := func(id uuid.UUID) {
		conn, ok := eh.connections[id]
		if !ok {
			return
		}
		delete(eh.connections, id)
		if err := conn.Close(); err != nil {
			eh.logger.Error().Err(eris.Wrap(err, "")).Str("connection", id.String()).Msg("failed to close websocket")
		}
	}
Loop:
	for eh.isRunning.Load() {
		select {
		case ch := <-eh.getConnCount:
			ch <- len(eh.connections)
		case ch := <-eh.getQueueLength:
			ch <- len(eh.queue)
		case reg := <-eh.register:
			eh.connections[reg.id] = reg.conn
			reg.done <- true
		case reg := <-eh.unregister:
			drop(reg.id)
			reg.done <- true
		case event := <-eh.broadcast:
			eh.queue = append(eh.queue, event)
		case <-eh.flush:
			var wg sync.WaitGroup
			for id, conn := range eh.connections {
				wg.Add(1)
				id, conn := id, conn
				go func() {
					defer wg.Done()
					for _, event := range eh.queue {
						if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
							go eh.unregisterConnection(id)
							eh.logger.Error().Err(eris.Wrap(err, "")).Msg("websocket write deadline failed")
							break
						}
						if err := conn.WriteMessage(websocket.TextMessage, event); err != nil {
							go eh.unregisterConnection(id)
							eh.logger.Error().Err(eris.Wrap(err, "")).Msg("websocket write failed")
							break
						}
					}
				}()
			}
			wg.Wait()
			eh.queue = eh.queue[:0]
		case <-eh.shutdown:
			go func() {
				for range eh.shutdown { //nolint:revive // drains the channel until closed
				}
			}()
			for id := range eh.connections {
				drop(id)
			}
			break Loop
		}
	}
	eh.isRunning.Store(false)
}

// handleConnection serves one inspector client. The client side of the
// protocol is write-only from our end; inbound messages are read and
// discarded to service control frames.
func (eh *EventHub) handleConnection(conn *websocket.Conn) {
	id := uuid.New()
	eh.registerConnection(id, conn)
	eh.logger.Debug().Str("connection", id.String()).Msg("inspector client connected")
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			eh.logger.Debug().Err(eris.Wrap(err, "")).Str("connection", id.String()).Msg("inspector client disconnected")
			break
		}
	}
	if eh.isRunning.Load() {
		eh.unregisterConnection(id)
	}
}
