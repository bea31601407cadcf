package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
	"duel_webapp/internal/match"
	"duel_webapp/internal/service"
	"duel_webapp/internal/session"
	"duel_webapp/internal/syncbus"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const testSecret = "ws-test-secret"

type memoryProfiles struct {
	mu    sync.Mutex
	users map[int64]*domain.User
}

func (m *memoryProfiles) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryProfiles) ApplyResult(_ context.Context, userID int64, won bool, reward, penalty int64) (domain.ProfileTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		u = &domain.User{ID: userID}
		m.users[userID] = u
	}
	if won {
		u.Credits += reward
		u.Wins++
	} else {
		u.Credits = max(u.Credits-penalty, 0)
		u.Losses++
	}
	return domain.ProfileTotals{UserID: u.ID, Credits: u.Credits, Wins: u.Wins, Losses: u.Losses}, nil
}

type testServer struct {
	hub *Hub
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	service.InitJWT(testSecret)
	gin.SetMode(gin.TestMode)

	clock := clockwork.NewRealClock()
	dir := session.NewDirectory("ctx-ws")
	bus := syncbus.New(syncbus.NewMemoryStore(clock), nil, clock, syncbus.Config{Origin: "ctx-ws"})
	dir.SetPublisher(bus)

	profiles := service.NewProfileService(&memoryProfiles{users: map[int64]*domain.User{}}, 100, 0)
	hub := NewHub(dir, bus, profiles, HubConfig{
		Clock: clock,
		Timings: match.Timings{
			Roll:       5 * time.Millisecond,
			Resolve:    5 * time.Millisecond,
			RoundPause: 5 * time.Millisecond,
		},
		BotMinDelay: 5 * time.Millisecond,
		BotMaxDelay: 15 * time.Millisecond,
		Strict:      true,
	})
	bus.Subscribe(hub.OnDirectory)
	bus.OnJoin(hub.OnJoin)

	r := gin.New()
	r.GET("/ws", HandleWS(hub, ""))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{hub: hub, srv: srv}
}

type peer struct {
	t    *testing.T
	conn *websocket.Conn
	in   chan map[string]any
}

func (ts *testServer) dial(t *testing.T, userID int64, name string, ttl time.Duration) *peer {
	t.Helper()
	token, err := service.GenerateJWT(userID, name, ttl)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	url := strings.Replace(ts.srv.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", name, err)
	}
	t.Cleanup(func() { conn.Close() })

	// one reader per connection; ReadMessage is not safe for concurrent use
	in := make(chan map[string]any, 1024)
	go func() {
		defer close(in)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var obj map[string]any
			if json.Unmarshal(msg, &obj) == nil {
				in <- obj
			}
		}
	}()

	p := &peer{t: t, conn: conn, in: in}
	p.waitType(MsgReady)
	return p
}

func (p *peer) sendJSON(v any) {
	p.t.Helper()
	if err := p.conn.WriteJSON(v); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

// waitFor returns the first message satisfying pred.
func (p *peer) waitFor(what string, pred func(map[string]any) bool) map[string]any {
	p.t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case m, ok := <-p.in:
			if !ok {
				p.t.Fatalf("connection closed while waiting for %s", what)
			}
			if pred(m) {
				return m
			}
		case <-deadline:
			p.t.Fatalf("timeout waiting for %s", what)
		}
	}
}

func (p *peer) waitType(typ string) map[string]any {
	p.t.Helper()
	return p.waitFor(typ, func(m map[string]any) bool { return m["type"] == typ })
}

func (p *peer) waitPhase(phase domain.Phase) map[string]any {
	p.t.Helper()
	return p.waitFor("phase "+string(phase), func(m map[string]any) bool {
		return m["type"] == MsgMatchState && statePhase(m) == string(phase)
	})
}

func (p *peer) waitError(code string) map[string]any {
	p.t.Helper()
	return p.waitFor("error "+code, func(m map[string]any) bool {
		return m["type"] == MsgError && m["code"] == code
	})
}

func matchState(m map[string]any) map[string]any {
	mt, _ := m["match"].(map[string]any)
	st, _ := mt["state"].(map[string]any)
	return st
}

func statePhase(m map[string]any) string {
	phase, _ := matchState(m)["phase"].(string)
	return phase
}

func TestHub_CreateJoinPlaysToCompletion(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, 1, "alice", time.Hour)
	bob := ts.dial(t, 2, "bob", time.Hour)

	alice.sendJSON(Request{Type: MsgCreateSession, GameType: domain.GameTypeSumDice, Role: domain.RoleInitiator, RoundCount: 1})
	created := alice.waitType(MsgSessionCreated)
	sess, _ := created["session"].(map[string]any)
	id, _ := sess["id"].(string)
	if id == "" {
		t.Fatalf("session_created without id: %v", created)
	}
	if sess["creator_name"] != "alice" {
		t.Fatalf("display name should default to the username, got %v", sess["creator_name"])
	}

	bob.sendJSON(Request{Type: MsgListSessions, GameType: domain.GameTypeSumDice})
	bob.waitFor("advertised session", func(m map[string]any) bool {
		if m["type"] != MsgSessions {
			return false
		}
		list, _ := m["sessions"].([]any)
		return len(list) == 1
	})

	bob.sendJSON(Request{Type: MsgJoinSession, SessionID: id})

	for _, p := range []*peer{alice, bob} {
		done := p.waitPhase(domain.PhaseComplete)
		st := matchState(done)
		if st["session_id"] != id {
			t.Fatalf("completed match for %v, want %s", st["session_id"], id)
		}
		if st["is_solo_mode"] == true {
			t.Fatal("joined match must not be solo")
		}
		p.waitType(MsgProfile)
	}

	if n := len(ts.hub.Directory().Sessions(session.Filter{})); n != 0 {
		t.Fatalf("joined session still listed (%d records)", n)
	}
}

func TestHub_JoinRoleConflictLeavesSession(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, 1, "alice", time.Hour)
	bob := ts.dial(t, 2, "bob", time.Hour)

	alice.sendJSON(Request{Type: MsgCreateSession, GameType: domain.GameTypeCoinflip, Role: domain.RoleInitiator, RoundCount: 3})
	created := alice.waitType(MsgSessionCreated)
	id := created["session"].(map[string]any)["id"].(string)

	bob.sendJSON(Request{Type: MsgJoinSession, SessionID: id, Role: domain.RoleInitiator})
	bob.waitError("role_conflict")

	bob.sendJSON(Request{Type: MsgListSessions})
	list := bob.waitFor("session list", func(m map[string]any) bool {
		return m["type"] == MsgSessions
	})
	if got := len(list["sessions"].([]any)); got != 1 {
		t.Fatalf("expected session to stay listed, got %d", got)
	}

	bob.sendJSON(Request{Type: MsgJoinSession, SessionID: "missing"})
	bob.waitError("not_found")
}

func TestHub_JoinInvalidRoleLeavesSession(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, 1, "alice", time.Hour)
	bob := ts.dial(t, 2, "bob", time.Hour)

	alice.sendJSON(Request{Type: MsgCreateSession, GameType: domain.GameTypeSumDice, Role: domain.RoleInitiator, RoundCount: 1})
	created := alice.waitType(MsgSessionCreated)
	id := created["session"].(map[string]any)["id"].(string)

	bob.sendJSON(Request{Type: MsgJoinSession, SessionID: id, Role: "bogus"})
	bob.waitError("invalid")

	if n := len(ts.hub.Directory().Sessions(session.Filter{})); n != 1 {
		t.Fatalf("sessions after rejected join = %d; want 1", n)
	}

	// the creator is still waiting and can be joined with a proper role
	bob.sendJSON(Request{Type: MsgJoinSession, SessionID: id, Role: domain.RoleResponder})
	for _, p := range []*peer{alice, bob} {
		p.waitPhase(domain.PhaseComplete)
	}
}

func TestHub_PlaySolo(t *testing.T) {
	ts := newTestServer(t)
	p := ts.dial(t, 3, "carol", time.Hour)

	p.sendJSON(Request{Type: MsgPlaySolo, GameType: domain.GameTypeCoinflip, Role: domain.RoleInitiator, RoundCount: 3})

	for {
		m := p.waitFor("solo progress", func(m map[string]any) bool { return m["type"] == MsgMatchState })
		st := matchState(m)
		if st["is_solo_mode"] != true {
			t.Fatalf("expected solo mode, got %v", st)
		}
		if statePhase(m) == string(domain.PhaseComplete) {
			if st["winner"] != "a" && st["winner"] != "b" {
				t.Fatalf("complete without a winner: %v", st)
			}
			return
		}
		if statePhase(m) != string(domain.PhaseAwaitingDecision) || st["awaiting_side"] != "a" {
			continue
		}
		opts, _ := m["match"].(map[string]any)["options"].([]any)
		if len(opts) == 0 {
			t.Fatalf("awaiting side a without options: %v", m)
		}
		p.sendJSON(Request{Type: MsgDecision, Decision: gameDecision(opts[0])})
	}
}

func TestHub_CancelOnlyByCreator(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, 1, "alice", time.Hour)
	bob := ts.dial(t, 2, "bob", time.Hour)

	alice.sendJSON(Request{Type: MsgCreateSession, GameType: domain.GameTypeFootball, Role: domain.RoleResponder})
	created := alice.waitType(MsgSessionCreated)
	id := created["session"].(map[string]any)["id"].(string)

	bob.sendJSON(Request{Type: MsgCancelSession, SessionID: id})
	bob.waitError("forbidden")

	alice.sendJSON(Request{Type: MsgCancelSession, SessionID: id})
	alice.waitPhase(domain.PhaseIdle)

	if n := len(ts.hub.Directory().Sessions(session.Filter{})); n != 0 {
		t.Fatalf("cancelled session still listed (%d records)", n)
	}
}

func TestHub_CancelRequiresHostingNode(t *testing.T) {
	ts := newTestServer(t)
	ts.dial(t, 1, "alice", time.Hour)

	// a session alice advertised from another node
	rec, err := ts.hub.Directory().Create(context.Background(), session.CreateRequest{
		GameType:    domain.GameTypeNvuti,
		Role:        domain.RoleInitiator,
		DisplayName: "alice",
		CreatorID:   1,
		RoundCount:  3,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := ts.hub.CancelSession(context.Background(), rec.ID, 1); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("CancelSession = %v; want ErrNotConnected", err)
	}
	if _, ok := ts.hub.Directory().Get(rec.ID); !ok {
		t.Fatal("session removed although its host lives elsewhere")
	}
}

func TestHub_BusyWhileHosting(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, 1, "alice", time.Hour)

	alice.sendJSON(Request{Type: MsgCreateSession, GameType: domain.GameTypeNvuti, Role: domain.RoleInitiator, RoundCount: 1})
	alice.waitType(MsgSessionCreated)

	alice.sendJSON(Request{Type: MsgPlaySolo, GameType: domain.GameTypeNvuti, Role: domain.RoleInitiator, RoundCount: 1})
	alice.waitError("busy")

	alice.sendJSON(Request{Type: MsgLeave})
	alice.waitPhase(domain.PhaseIdle)
}

func TestHub_DisconnectReleasesSession(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, 1, "alice", time.Hour)

	alice.sendJSON(Request{Type: MsgCreateSession, GameType: domain.GameTypeBlackjack, Role: domain.RoleInitiator, RoundCount: 1})
	alice.waitType(MsgSessionCreated)
	alice.conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for len(ts.hub.Directory().Sessions(session.Filter{})) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session of a disconnected creator still listed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_TokenExpiryClosesConnection(t *testing.T) {
	ts := newTestServer(t)
	// exp has second precision, so the token lives between one and two seconds
	p := ts.dial(t, 4, "dave", 2*time.Second)

	p.waitError("token_expired")

	select {
	case _, ok := <-p.in:
		for ok {
			_, ok = <-p.in
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection not closed after token expiry")
	}
}

func TestHub_SweepIdle(t *testing.T) {
	ts := newTestServer(t)
	ts.dial(t, 5, "erin", time.Hour)

	deadline := time.Now().Add(5 * time.Second)
	for ts.hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if n := ts.hub.SweepIdle(time.Hour); n != 0 {
		t.Fatalf("fresh connection swept: %d", n)
	}
	if n := ts.hub.SweepIdle(0); n != 1 {
		t.Fatalf("idle connection not swept: %d", n)
	}
}

func gameDecision(v any) game.Decision {
	s, _ := v.(string)
	return game.Decision(s)
}
