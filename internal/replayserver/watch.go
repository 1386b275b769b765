package replayserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/udisondev/combatplay/internal/battle/dispatch"
	"github.com/udisondev/combatplay/internal/battle/session"
	"github.com/udisondev/combatplay/internal/combatlog"
)

const (
	maxMessageSize = 512
	sendQueueSize  = 64
	outcomeTimeout = 5 * time.Second
)

// watcher is one websocket client drawing one session.
type watcher struct {
	conn      *websocket.Conn
	logID     string
	writeWait time.Duration
	pongWait  time.Duration

	mu     sync.Mutex
	send   chan []byte
	closed bool
	done   chan struct{} // closed when writePump exits
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	l, _, err := s.logs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, combatlog.ErrDigestMismatch) {
			writeError(w, http.StatusConflict, err, true)
			return
		}
		slog.Error("loading combat log", "log", id, "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("loading combat log failed"), false)
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, errors.New("combat log not found"), false)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "log", id, "err", err)
		return
	}

	wt := &watcher{
		conn:      conn,
		logID:     id,
		writeWait: s.cfg.WriteTimeout,
		pongWait:  s.cfg.ReadTimeout,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
	}
	if wt.writeWait <= 0 {
		wt.writeWait = 10 * time.Second
	}
	if wt.pongWait <= 0 {
		wt.pongWait = 60 * time.Second
	}
	go wt.writePump()
	defer func() {
		wt.finish()
		<-wt.done
	}()

	sess, err := session.New(l, remoteRenderers(wt), s.sessionOpts...)
	if err != nil {
		wt.enqueue(errorMessage{Type: typeError, Reason: err.Error(), Retry: session.IsRetryable(err)})
		return
	}

	wt.enqueue(actorsMessage{Type: typeActors, LogID: id, Actors: sess.Actors().All()})
	go wt.readPump(sess)

	slog.Info("watcher connected", "log", id, "remote", r.RemoteAddr)
	summary, err := sess.Run(r.Context())
	if err != nil {
		slog.Info("watcher left before the outcome", "log", id, "err", err)
		return
	}

	wt.enqueue(outcomeMessage{Type: typeOutcome, Summary: summary})
	if s.outcomes != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), outcomeTimeout)
		defer cancel()
		if err := s.outcomes.Save(ctx, summary); err != nil {
			slog.Error("saving combat outcome", "log", id, "err", err)
		}
	}
}

// remoteRenderers sends every rendered item to the client. The client
// acknowledges with a complete message, so onComplete is not used.
func remoteRenderers(wt *watcher) dispatch.Renderers {
	r := dispatch.RendererFunc(func(rc dispatch.RenderContext, _ func()) {
		wt.enqueue(itemMessage{
			Type:    typeItem,
			Item:    rc.Item,
			Speed:   rc.Speed,
			Health:  rc.Health,
			Effects: rc.Effects,
		})
	})
	out := make(dispatch.Renderers)
	for _, typ := range combatlog.FrameTypes() {
		if typ != combatlog.FrameRoundEnd {
			out[typ] = r
		}
	}
	return out
}

// enqueue drops the connection when the client cannot keep up.
func (w *watcher) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding watcher message", "log", w.logID, "err", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.send <- data:
	default:
		slog.Warn("watcher send queue full, disconnecting", "log", w.logID)
		w.closed = true
		close(w.send)
	}
}

func (w *watcher) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.send)
	}
}

// readPump feeds client controls into the session.
func (w *watcher) readPump(sess *session.Session) {
	defer sess.Close()

	w.conn.SetReadLimit(maxMessageSize)
	_ = w.conn.SetReadDeadline(time.Now().Add(w.pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(w.pongWait))
	})

	for {
		_, payload, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("watcher read failed", "log", w.logID, "err", err)
			}
			return
		}
		_ = w.conn.SetReadDeadline(time.Now().Add(w.pongWait))

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			slog.Debug("discarding malformed watcher message", "log", w.logID, "err", err)
			continue
		}

		switch msg.Type {
		case typeComplete:
			sess.Complete(msg.ItemID)
		case typeSpeed:
			if err := sess.SetSpeed(msg.Speed); err != nil {
				w.enqueue(errorMessage{Type: typeError, Reason: err.Error()})
			}
		case typeSkip:
			sess.Skip()
		default:
			slog.Debug("unknown watcher message", "log", w.logID, "type", msg.Type)
		}
	}
}

// writePump owns all writes to the connection.
func (w *watcher) writePump() {
	pingPeriod := (w.pongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.conn.Close()
		close(w.done)
	}()

	for {
		select {
		case data, ok := <-w.send:
			_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
			if !ok {
				_ = w.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("watcher write failed", "log", w.logID, "err", err)
				return
			}
		case <-ticker.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
