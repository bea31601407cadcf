package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"duel_webapp/internal/bot"
	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
	"duel_webapp/internal/logger"
	"duel_webapp/internal/match"
	"duel_webapp/internal/metrics"
	"duel_webapp/internal/service"
	"duel_webapp/internal/session"

	"github.com/jonboulle/clockwork"
)

var (
	ErrNotOwner       = errors.New("session belongs to another participant")
	ErrNotConnected   = errors.New("no idle connection for this user")
	ErrUnknownCommand = errors.New("unknown command")
)

// JoinNotifier wakes the creator of a joined session. *syncbus.Bus
// satisfies it.
type JoinNotifier interface {
	NotifyJoin(ctx context.Context, n domain.JoinNotification) error
}

type HubConfig struct {
	Clock       clockwork.Clock
	Timings     match.Timings
	BotMinDelay time.Duration
	BotMaxDelay time.Duration
	// NewRand seeds each participant's outcome generator. Nil means crypto.
	NewRand func() game.Rand
	Strict  bool
}

// Hub tracks the participants connected to this process. Each participant
// runs its own match controller; the hub only routes directory snapshots and
// join notifications to them.
type Hub struct {
	dir      *session.Directory
	notifier JoinNotifier
	profiles *service.ProfileService
	cfg      HubConfig
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	// hosting maps an advertised session to the client waiting on it
	hosting map[string]*Client
}

func NewHub(dir *session.Directory, notifier JoinNotifier, profiles *service.ProfileService, cfg HubConfig) *Hub {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Timings == (match.Timings{}) {
		cfg.Timings = match.DefaultTimings()
	}
	if cfg.NewRand == nil {
		cfg.NewRand = func() game.Rand { return game.NewCryptoRand() }
	}
	return &Hub{
		dir:      dir,
		notifier: notifier,
		profiles: profiles,
		cfg:      cfg,
		log:      logger.Component("hub"),
		clients:  make(map[*Client]struct{}),
		hosting:  make(map[string]*Client),
	}
}

func (h *Hub) Directory() *session.Directory { return h.dir }

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.Connections.Inc()
	h.log.Debug("client registered", "user_id", c.UserID, "clients", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c]
	delete(h.clients, c)
	for id, host := range h.hosting {
		if host == c {
			delete(h.hosting, id)
		}
	}
	h.mu.Unlock()
	if known {
		metrics.Connections.Dec()
	}
}

func (h *Hub) host(id string, c *Client) {
	h.mu.Lock()
	h.hosting[id] = c
	h.mu.Unlock()
}

func (h *Hub) unhost(id string) {
	h.mu.Lock()
	delete(h.hosting, id)
	h.mu.Unlock()
}

func (h *Hub) hostOf(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hosting[id]
}

func (h *Hub) snapshotClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// ClientCount is the number of connected participants.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnDirectory is the bus subscriber: foreign snapshots replace the local view,
// then every participant gets the fresh list.
func (h *Hub) OnDirectory(snap domain.DirectorySnapshot) {
	h.dir.Replace(snap)

	msg := encode(SessionsPayload{Type: MsgSessions, Sessions: h.dir.Sessions(session.Filter{})})
	for _, c := range h.snapshotClients() {
		c.send(msg)
	}
}

// OnJoin is the bus join handler. It reports true when a local participant
// was waiting on the session.
func (h *Hub) OnJoin(n domain.JoinNotification) bool {
	c := h.hostOf(n.SessionID)
	if c == nil {
		return false
	}
	if !c.ctrl.HandleJoin(n) {
		return false
	}
	h.unhost(n.SessionID)
	c.clearHosted(n.SessionID)
	return true
}

// CreateFor advertises a session on behalf of userID through one of its idle
// connections, which then hosts the match.
func (h *Hub) CreateFor(ctx context.Context, userID int64, req Request) (domain.SessionRecord, error) {
	for _, c := range h.snapshotClients() {
		if c.UserID == userID && !c.ctrl.Active() {
			return c.createSession(ctx, req)
		}
	}
	return domain.SessionRecord{}, ErrNotConnected
}

// CancelSession withdraws an advertised session on behalf of its creator and
// returns the waiting host to idle. Only the node hosting the session may
// cancel it; elsewhere the creator gets ErrNotConnected.
func (h *Hub) CancelSession(ctx context.Context, id string, userID int64) error {
	rec, ok := h.dir.Get(id)
	if !ok {
		return domain.ErrNotFound
	}
	if rec.CreatorID != userID {
		return ErrNotOwner
	}
	c := h.hostOf(id)
	if c == nil {
		return ErrNotConnected
	}
	if !h.dir.Cancel(ctx, id) {
		return domain.ErrNotFound
	}
	h.unhost(id)
	c.clearHosted(id)
	c.ctrl.ForceIdle("session cancelled")
	return nil
}

// Logout disconnects every connection of userID and releases the sessions
// it still advertises. It returns the number of closed connections.
func (h *Hub) Logout(ctx context.Context, userID int64) int {
	n := 0
	for _, c := range h.snapshotClients() {
		if c.UserID == userID {
			c.closeWith(errors.New("logged out"))
			n++
		}
	}
	h.dir.CancelByCreator(ctx, userID)
	if n > 0 {
		h.log.Info("user logged out", "user_id", userID, "connections", n)
	}
	return n
}

// SweepIdle closes connections with no match in play that sent nothing
// for maxIdle.
func (h *Hub) SweepIdle(maxIdle time.Duration) int {
	cutoff := h.cfg.Clock.Now().Add(-maxIdle)
	n := 0
	for _, c := range h.snapshotClients() {
		if c.ctrl.Active() || c.lastSeen().After(cutoff) {
			continue
		}
		c.closeWith(errors.New("idle timeout"))
		n++
	}
	if n > 0 {
		h.log.Info("idle connections swept", "count", n)
	}
	return n
}

func (h *Hub) newController(c *Client) *match.Controller {
	rng := h.cfg.NewRand()
	opts := match.Options{
		Clock:    h.cfg.Clock,
		Rand:     rng,
		Bot:      bot.NewAgent(rng, h.cfg.BotMinDelay, h.cfg.BotMaxDelay),
		Timings:  h.cfg.Timings,
		Observer: c.onSnapshot,
		Strict:   h.cfg.Strict,
		Logger:   logger.With("component", "match", "user_id", c.UserID),
	}
	if h.profiles.Enabled() {
		opts.Reporter = &clientReporter{profiles: h.profiles, client: c}
	}
	return match.New(opts)
}

// clientReporter reports the result and pushes the new totals to the player.
type clientReporter struct {
	profiles *service.ProfileService
	client   *Client
}

func (r *clientReporter) ReportResult(ctx context.Context, isWinner bool) (domain.ProfileTotals, error) {
	totals, err := r.profiles.ReportResult(ctx, r.client.UserID, isWinner)
	if err != nil {
		return totals, err
	}
	r.client.send(encode(ProfilePayload{Type: MsgProfile, Profile: totals}))
	return totals, nil
}
