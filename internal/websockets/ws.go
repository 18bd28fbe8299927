package websockets

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"songguessr/internal"
	"songguessr/internal/game"
)

// =============================================================================
// WEBSOCKET SESSION LAYER
// =============================================================================

const (
	// Heartbeat: ping every 10 s, give up after 20 s of silence.
	pingPeriod = 10 * time.Second
	pongWait   = 20 * time.Second
	writeWait  = 10 * time.Second

	// Outbound queue per session; a full queue drops rather than
	// blocks, the core must never wait on a slow client.
	sendQueueSize = 32
)

// Greeting lines sent on connect, before anything else.
const (
	banner        = "songguessr v0.1.0 (AGPL-3.0-or-later)"
	songRouteLine = "song_route /songs"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session owns one websocket connection and is the user's Sink. It is
// the only place that knows the wire format; the core hands it
// ServerMessage values and it renders them to single text lines.
type session struct {
	conn *websocket.Conn
	user *internal.User
	out  chan internal.ServerMessage
	done chan struct{}
	once sync.Once
}

// Deliver queues msg for the write pump, fire-and-forget. Dead or
// backlogged sessions drop the message.
func (s *session) Deliver(msg internal.ServerMessage) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- msg:
	default:
		log.Printf("[WS] user %d: send queue full, dropping %T", s.user.Id, msg)
	}
}

func (s *session) shutdown() {
	s.once.Do(func() { close(s.done) })
}

// Handler upgrades /ws requests, mints a fresh user and runs the
// session until the socket dies.
func Handler(core *game.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[WS] upgrade failed: %v", err)
			return
		}

		user := internal.NewUser(rand.Uint32(), fmt.Sprintf("User %d", rand.Intn(256)))
		s := &session{
			conn: conn,
			user: user,
			out:  make(chan internal.ServerMessage, sendQueueSize),
			done: make(chan struct{}),
		}
		user.AttachSink(s)
		log.Printf("[WS] user %d connected from %s", user.Id, r.RemoteAddr)

		go s.writePump()
		s.readPump(core)
	}
}

// readPump parses one action per text frame and feeds the core. On
// any exit — close, error, heartbeat timeout — it detaches the sink
// and submits a synthetic leave so room state cleans up through the
// normal transitions.
func (s *session) readPump(core *game.Core) {
	defer func() {
		s.shutdown()
		s.conn.Close()
		s.user.DetachSink()
		core.Handle(game.Action{Verb: game.VerbLeave}, s.user)
		log.Printf("[WS] user %d disconnected", s.user.Id)
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] user %d read error: %v", s.user.Id, err)
			}
			return
		}
		line := strings.TrimSpace(string(data))
		if line == "" {
			continue
		}
		core.Handle(game.ParseAction(line), s.user)
	}
}

// writePump is the single writer on the connection: greeting first,
// then rendered messages and pings.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	if err := s.writeLine(banner); err != nil {
		return
	}
	if err := s.writeLine(songRouteLine); err != nil {
		return
	}

	for {
		select {
		case msg := <-s.out:
			if err := s.writeLine(Render(msg)); err != nil {
				log.Printf("[WS] user %d write error: %v", s.user.Id, err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) writeLine(line string) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(line))
}
