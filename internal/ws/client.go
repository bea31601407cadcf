package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
	"duel_webapp/internal/logger"
	"duel_webapp/internal/match"
	"duel_webapp/internal/service"
	"duel_webapp/internal/session"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
	commandTimeout = 5 * time.Second
)

// Client is one participant's execution context: a connection plus the match
// controller it owns.
type Client struct {
	UserID    int64
	Username  string
	ExpiresAt time.Time

	Conn *websocket.Conn
	Send chan []byte

	hub  *Hub
	ctrl *match.Controller
	log  *slog.Logger

	mu     sync.Mutex
	hosted string

	seen      atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
	expiry    clockwork.Timer
}

func NewClient(claims service.Claims, conn *websocket.Conn, hub *Hub) *Client {
	c := &Client{
		UserID:    claims.UserID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		hub:       hub,
		log:       logger.With("component", "ws", "user_id", claims.UserID),
		done:      make(chan struct{}),
	}
	c.touch()
	c.ctrl = hub.newController(c)
	return c
}

// Run serves the connection until it closes.
func (c *Client) Run() {
	go c.writePump()
	c.send(readyMsg)
	c.hub.register(c)

	if !c.ExpiresAt.IsZero() {
		c.expiry = c.hub.cfg.Clock.AfterFunc(c.ExpiresAt.Sub(c.hub.cfg.Clock.Now()), func() {
			c.closeWith(service.ErrTokenExpired)
		})
	}

	c.readPump()
}

func (c *Client) readPump() {
	defer c.cleanup()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", "error", err)
			}
			return
		}
		c.touch()
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes what is still queued before a close.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// send queues msg without blocking. A participant too slow to drain its
// buffer loses messages; the next match_state carries the full state anyway.
func (c *Client) send(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.Send <- msg:
	default:
		c.log.Warn("send buffer full, message dropped")
	}
}

func (c *Client) onSnapshot(s match.Snapshot) {
	c.send(encode(MatchStatePayload{Type: MsgMatchState, Match: s}))
}

// closeWith tells the participant why and closes the connection. The read
// pump then runs cleanup.
func (c *Client) closeWith(reason error) {
	c.send(errorMsg(reason))
	c.closeOnce.Do(func() {
		c.log.Info("closing connection", "reason", reason)
		close(c.done)
	})
}

func (c *Client) cleanup() {
	c.closeOnce.Do(func() { close(c.done) })
	if c.expiry != nil {
		c.expiry.Stop()
	}
	c.ctrl.ForceIdle("disconnected")
	if id := c.takeHosted(); id != "" {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		c.hub.dir.Cancel(ctx, id)
		cancel()
	}
	c.hub.unregister(c)
	_ = c.Conn.Close()
}

func (c *Client) touch() {
	c.seen.Store(c.hub.cfg.Clock.Now().UnixNano())
}

func (c *Client) lastSeen() time.Time {
	return time.Unix(0, c.seen.Load())
}

func (c *Client) setHosted(id string) {
	c.mu.Lock()
	c.hosted = id
	c.mu.Unlock()
}

func (c *Client) takeHosted() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.hosted
	c.hosted = ""
	return id
}

// clearHosted forgets id if it is still the hosted session.
func (c *Client) clearHosted(id string) {
	c.mu.Lock()
	if c.hosted == id {
		c.hosted = ""
	}
	c.mu.Unlock()
}

func (c *Client) handle(raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.send(errorMsg(domain.NewValidationError("message", "not a json object")))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch req.Type {
	case MsgListSessions:
		sessions := c.hub.dir.List(ctx, session.Filter{Role: req.Role, GameType: req.GameType})
		c.send(encode(SessionsPayload{Type: MsgSessions, Sessions: sessions}))
	case MsgCreateSession:
		_, err = c.createSession(ctx, req)
	case MsgCancelSession:
		err = c.cancelSession(ctx, req)
	case MsgJoinSession:
		err = c.joinSession(ctx, req)
	case MsgPlaySolo:
		role := req.Role
		if role == "" {
			role = domain.RoleInitiator
		}
		err = c.ctrl.StartSolo(req.GameType, role, req.RoundCount)
	case MsgDecision:
		err = c.ctrl.Decide(req.Decision)
	case MsgLeave:
		c.leave(ctx)
	default:
		err = ErrUnknownCommand
	}

	if err != nil {
		c.log.Debug("command rejected", "type", req.Type, "error", err)
		c.send(errorMsg(err))
	}
}

// createSession parks the controller in waiting_for_opponent before the
// session is advertised, so an immediate join always finds its host.
func (c *Client) createSession(ctx context.Context, req Request) (domain.SessionRecord, error) {
	if c.ctrl.Active() {
		return domain.SessionRecord{}, match.ErrBusy
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = c.Username
	}

	rec, err := c.hub.dir.NewRecord(session.CreateRequest{
		GameType:    req.GameType,
		Role:        req.Role,
		DisplayName: name,
		CreatorID:   c.UserID,
		RoundCount:  req.RoundCount,
	})
	if err != nil {
		return rec, err
	}
	if err := c.ctrl.Host(rec); err != nil {
		return rec, err
	}
	c.setHosted(rec.ID)
	c.hub.host(rec.ID, c)
	c.hub.dir.Add(ctx, rec)

	c.send(encode(SessionCreatedPayload{Type: MsgSessionCreated, Session: rec}))
	return rec, nil
}

func (c *Client) cancelSession(ctx context.Context, req Request) error {
	id := req.SessionID
	if id == "" {
		c.mu.Lock()
		id = c.hosted
		c.mu.Unlock()
	}
	if id == "" {
		return domain.ErrNotFound
	}
	return c.hub.CancelSession(ctx, id, c.UserID)
}

// joinSession claims the session locally, starts the joined match and wakes
// the creator wherever it runs.
func (c *Client) joinSession(ctx context.Context, req Request) error {
	if c.ctrl.Active() {
		return match.ErrBusy
	}
	rec, ok := c.hub.dir.Get(req.SessionID)
	if !ok {
		return domain.ErrNotFound
	}
	if rec.CreatorID != 0 && rec.CreatorID == c.UserID {
		return domain.ErrRoleConflict
	}
	role := req.Role
	if role == "" {
		role = rec.CreatorRole.Opposite()
	}
	if !role.Valid() {
		return domain.NewValidationError("role", "must be initiator or responder")
	}

	rounds := rec.RoundCount
	if req.RoundCount > 0 {
		r, err := game.EffectiveRounds(rec.GameType, req.RoundCount)
		if err != nil {
			return err
		}
		rounds = r
	}

	rec, err := c.hub.dir.Join(ctx, req.SessionID, role)
	if err != nil {
		return err
	}
	claimed := rec
	rec.RoundCount = rounds
	if err := c.ctrl.StartJoined(rec, role); err != nil {
		// put the session back so its creator can still be joined
		c.hub.dir.Add(ctx, claimed)
		return err
	}

	n := domain.JoinNotification{
		SessionID:  rec.ID,
		RoundCount: c.ctrl.State().RoundCount,
		GameType:   rec.GameType,
		JoinerName: c.Username,
	}
	if err := c.hub.notifier.NotifyJoin(ctx, n); err != nil {
		// the store or live channel failed; the local and surviving channels
		// may still have delivered it
		c.log.Warn("join notification partly failed", "session_id", rec.ID, "error", err)
	}
	return nil
}

func (c *Client) leave(ctx context.Context) {
	if id := c.takeHosted(); id != "" {
		c.hub.unhost(id)
		c.hub.dir.Cancel(ctx, id)
	}
	c.ctrl.ForceIdle("left")
}
