package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/bastiangx/ordsok/pkg/search"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ClientMessage is a command sent by the browser. Which fields matter depends on Type.
type ClientMessage struct {
	Type  string `json:"type"`
	Mode  string `json:"mode,omitempty"`
	Text  string `json:"text,omitempty"`
	Index int    `json:"index,omitempty"`
	Value string `json:"value,omitempty"`
	Count int    `json:"count,omitempty"`
	Area  string `json:"area,omitempty"`
}

// StateMessage is the session state pushed to the browser
type StateMessage struct {
	Type        string           `json:"type"`
	Session     string           `json:"session"`
	Mode        string           `json:"mode"`
	Query       string           `json:"query"`
	Pattern     []string         `json:"pattern"`
	LetterCount int              `json:"letter_count"`
	Areas       []AreaJSON       `json:"areas"`
	Suggestions []SuggestionJSON `json:"suggestions"`
	Selected    *SuggestionJSON  `json:"selected,omitempty"`
	Loading     bool             `json:"loading"`
	Error       string           `json:"error,omitempty"`
	Version     uint64           `json:"version"`
}

// ErrorMessage reports a rejected command
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

var errUnknownCommand = errors.New("unknown command")

// wsConn pairs one socket with the newest state waiting to be written
type wsConn struct {
	id   string
	conn *websocket.Conn
	log  *log.Logger

	mu      sync.Mutex
	latest  search.State
	hasNew  bool
	errs    []ErrorMessage
	wake    chan struct{}
	done    chan struct{}
	endOnce sync.Once
	// closeCode is sent on done; it is set before done closes
	closeCode int
}

func newWSConn(conn *websocket.Conn, l *log.Logger) *wsConn {
	id := uuid.NewV4().String()
	return &wsConn{
		id:   id,
		conn: conn,
		log:  l.With("session", id[:8]),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// publish keeps st unless a newer state was already seen. Snapshots may arrive out of order.
func (c *wsConn) publish(st search.State) {
	c.mu.Lock()
	if st.Version < c.latest.Version {
		c.mu.Unlock()
		return
	}
	c.latest = st
	c.hasNew = true
	c.mu.Unlock()
	c.signal()
}

func (c *wsConn) reject(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, ErrorMessage{Type: "error", Error: err.Error()})
	c.mu.Unlock()
	c.signal()
}

func (c *wsConn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *wsConn) end() {
	c.endWith(websocket.CloseNormalClosure)
}

func (c *wsConn) endWith(code int) {
	c.endOnce.Do(func() {
		c.closeCode = code
		close(c.done)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an http error
		s.log.Warn("Failed to upgrade conn", "err", err)
		return
	}
	defer ws.Close()

	c := newWSConn(ws, s.log)
	sess := s.newSession(c.publish)
	s.sessions.Add(1)
	defer s.sessions.Add(-1)
	c.log.Debug("Session opened", "remote", r.RemoteAddr)

	c.publish(sess.Snapshot())

	var g errgroup.Group
	g.Go(func() error { return s.writeLoop(c) })
	g.Go(func() error {
		defer c.end()
		return s.readLoop(c, sess)
	})
	err = g.Wait()
	sess.Close()

	if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.log.Warn("Session ended", "err", err)
		return
	}
	c.log.Debug("Session closed")
}

// readLoop applies commands until the socket fails.
// Frames that do not decode are rejected; only transport errors end the loop.
func (s *Server) readLoop(c *wsConn, sess *search.Session) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.endWith(closeCodeFor(err))
			return err
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reject(fmt.Errorf("invalid message: %w", err))
			continue
		}
		if err := dispatch(sess, msg); err != nil {
			c.log.Debug("Command rejected", "type", msg.Type, "err", err)
			c.reject(err)
		}
	}
}

// closeCodeFor picks the close code answering a failed read: the peer's own code when it closed,
// otherwise an abnormal end.
func closeCodeFor(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}

// writeLoop sends the newest state and queued errors, and keeps the socket alive with pings.
// It closes the socket when done, which also ends readLoop.
func (s *Server) writeLoop(c *wsConn) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// 1006 is never sent on the wire
			if c.closeCode != websocket.CloseAbnormalClosure {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(c.closeCode, ""), time.Now().Add(writeWait))
			}
			return nil
		case <-s.closing:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
			return nil
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-c.wake:
			if err := s.flush(c); err != nil {
				return err
			}
		}
	}
}

func (s *Server) flush(c *wsConn) error {
	c.mu.Lock()
	errs := c.errs
	c.errs = nil
	st, send := c.latest, c.hasNew
	c.hasNew = false
	c.mu.Unlock()

	for _, e := range errs {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(e); err != nil {
			return err
		}
	}
	if !send {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(s.stateMessage(c.id, st))
}

func (s *Server) stateMessage(id string, st search.State) StateMessage {
	msg := StateMessage{
		Type:        "state",
		Session:     id,
		Mode:        st.Mode.String(),
		Query:       st.Query,
		Pattern:     st.Pattern,
		LetterCount: st.LetterCount,
		Areas:       areasJSON(st.Areas),
		Suggestions: s.toJSON(st.Suggestions),
		Loading:     st.Loading,
		Error:       st.ErrorMessage(),
		Version:     st.Version,
	}
	if st.Selected != nil {
		sel := s.suggestionJSON(st.Selected.Suggestion)
		sel.Link = st.Selected.Link
		msg.Selected = &sel
	}
	return msg
}

// dispatch maps one browser command onto the session
func dispatch(sess *search.Session, msg ClientMessage) error {
	switch msg.Type {
	case "mode":
		kind, ok := query.ParseKind(msg.Mode)
		if !ok {
			return fmt.Errorf("unknown mode %q", msg.Mode)
		}
		return sess.SetMode(kind)
	case "input":
		return sess.Type(msg.Text)
	case "submit":
		return sess.Submit()
	case "letter":
		return sess.SetLetter(msg.Index, msg.Value)
	case "add":
		return sess.AddSlot()
	case "remove":
		return sess.RemoveSlot()
	case "clear":
		return sess.ClearPattern()
	case "count":
		return sess.SetLetterCount(msg.Count)
	case "area_add":
		return sess.SelectArea(msg.Area)
	case "area_remove":
		return sess.RemoveArea(msg.Area)
	case "select":
		_, err := sess.Select(msg.Index)
		return err
	}
	return fmt.Errorf("%w: %q", errUnknownCommand, msg.Type)
}
