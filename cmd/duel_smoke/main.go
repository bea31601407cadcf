package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"duel_webapp/internal/logger"
	"duel_webapp/internal/service"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// Plays one duel between two synthetic users against a running server:
// A advertises a session, B joins it, both wait for the match to complete.
func main() {
	addr := flag.String("addr", "", "server host:port (default 127.0.0.1:$APP_PORT)")
	gameType := flag.String("game", "dice", "game type")
	rounds := flag.Int("rounds", 3, "round count")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret)

	if *addr == "" {
		port := os.Getenv("APP_PORT")
		if port == "" {
			port = "8080"
		}
		// 127.0.0.1 rather than localhost to avoid resolving to [::1]
		*addr = "127.0.0.1:" + port
	}

	a := dial(*addr, 900001, "smokeA")
	defer a.conn.Close()
	b := dial(*addr, 900002, "smokeB")
	defer b.conn.Close()

	deadline := time.Now().Add(*timeout)

	a.write(map[string]any{"type": "create_session", "game_type": *gameType, "role": "initiator", "round_count": *rounds})
	created := a.waitType("session_created", deadline)
	sess, _ := created["session"].(map[string]any)
	id, _ := sess["id"].(string)
	logger.Info("session advertised", "session_id", id)

	b.write(map[string]any{"type": "join_session", "session_id": id})

	for _, p := range []*peer{a, b} {
		for {
			m := p.waitType("match_state", deadline)
			mt, _ := m["match"].(map[string]any)
			st, _ := mt["state"].(map[string]any)
			phase, _ := st["phase"].(string)

			if phase == "awaiting_decision" && st["awaiting_side"] == "a" {
				if opts, _ := mt["options"].([]any); len(opts) > 0 {
					p.write(map[string]any{"type": "decision", "decision": opts[0]})
				}
			}
			if phase == "complete" {
				logger.Info("match complete", "user", p.name, "winner", st["winner"], "score_a", st["score_a"], "score_b", st["score_b"])
				break
			}
		}
	}
	fmt.Println("smoke OK")
}

type peer struct {
	name string
	conn *websocket.Conn
	in   chan map[string]any
}

func dial(addr string, userID int64, name string) *peer {
	token, err := service.GenerateJWT(userID, name, time.Hour)
	if err != nil {
		logger.Fatal("token", "error", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws?token=%s", addr, token), nil)
	if err != nil {
		logger.Fatal("dial", "user", name, "error", err)
	}

	p := &peer{name: name, conn: conn, in: make(chan map[string]any, 256)}
	go func() {
		defer close(p.in)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var obj map[string]any
			if json.Unmarshal(msg, &obj) == nil {
				p.in <- obj
			}
		}
	}()
	p.waitType("ready", time.Now().Add(5*time.Second))
	return p
}

func (p *peer) write(v any) {
	if err := p.conn.WriteJSON(v); err != nil {
		logger.Fatal("write", "user", p.name, "error", err)
	}
}

func (p *peer) waitType(typ string, deadline time.Time) map[string]any {
	for {
		select {
		case m, ok := <-p.in:
			if !ok {
				logger.Fatal("connection closed", "user", p.name, "waiting_for", typ)
			}
			if m["type"] == "error" {
				logger.Warn("server error", "user", p.name, "code", m["code"], "message", m["message"])
			}
			if m["type"] == typ {
				return m
			}
		case <-time.After(time.Until(deadline)):
			logger.Fatal("timeout", "user", p.name, "waiting_for", typ)
		}
	}
}
