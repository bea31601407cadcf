package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
	"duel_webapp/internal/metrics"

	"github.com/jonboulle/clockwork"
)

var (
	ErrBusy               = errors.New("a match is already in progress")
	ErrNoDecisionExpected = errors.New("no decision expected right now")
)

// Controller drives one match through its lifecycle. It is the only writer of
// its MatchState: timers, bot decisions and human decisions all enter through
// the same locked transition functions, and the processing latch makes round
// resolution and match completion run once per round.
type Controller struct {
	mu   sync.Mutex
	opts Options
	log  *slog.Logger

	state   domain.MatchState
	variant game.Variant
	round   game.Round
	last    *domain.RoundOutcome

	latch    latch
	epoch    uint64
	timers   []clockwork.Timer
	botArmed bool
}

func New(opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		opts:  opts,
		log:   opts.Logger,
		state: domain.MatchState{Phase: domain.PhaseIdle},
	}
}

// State returns a copy of the current match state.
func (c *Controller) State() domain.MatchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Active reports whether a match is waiting or in play.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active()
}

func (c *Controller) active() bool {
	return c.state.Phase != domain.PhaseIdle && c.state.Phase != domain.PhaseComplete
}

// Host parks the controller in waiting_for_opponent for a session the local
// participant created.
func (c *Controller) Host(rec domain.SessionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.prepare(rec.ID, rec.GameType, rec.RoundCount, rec.CreatorRole, false); err != nil {
		return err
	}
	c.state.Phase = domain.PhaseWaiting
	c.log.Info("waiting for opponent", "session_id", rec.ID, "game", rec.GameType)
	c.emit()
	return nil
}

// HandleJoin starts a hosted match when the matching join notification
// arrives. Notifications for other sessions, or arriving after the match left
// the waiting phase, are ignored and leave the state untouched.
func (c *Controller) HandleJoin(n domain.JoinNotification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != domain.PhaseWaiting || n.SessionID != c.state.SessionID {
		c.dropped("join")
		return false
	}
	if n.GameType != "" && n.GameType != c.state.GameType {
		c.log.Warn("join notification for a different game", "session_id", n.SessionID, "got", n.GameType, "want", c.state.GameType)
		c.dropped("join")
		return false
	}

	// the joiner's round count is authoritative
	if rounds, err := game.EffectiveRounds(c.state.GameType, n.RoundCount); err == nil {
		c.state.RoundCount = rounds
	} else {
		c.log.Warn("join notification with invalid round count", "session_id", n.SessionID, "round_count", n.RoundCount, "error", err)
	}

	c.log.Info("opponent joined", "session_id", n.SessionID, "joiner", n.JoinerName)
	c.startMatch()
	return true
}

// StartJoined starts a match on the joining side of a session.
func (c *Controller) StartJoined(rec domain.SessionRecord, role domain.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if role == rec.CreatorRole {
		return domain.ErrRoleConflict
	}
	if err := c.prepare(rec.ID, rec.GameType, rec.RoundCount, role, false); err != nil {
		return err
	}
	c.startMatch()
	return nil
}

// StartSolo starts a match against the bot agent.
func (c *Controller) StartSolo(gameType domain.GameType, role domain.Role, roundCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.prepare("", gameType, roundCount, role, true); err != nil {
		return err
	}
	c.startMatch()
	return nil
}

// Decide feeds the local participant's decision into the round in play.
func (c *Controller) Decide(d game.Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receive(domain.SideA, d, "human")
}

// ForceIdle abandons whatever the controller is doing. Pending timers are
// stopped and any callback that still fires is discarded.
func (c *Controller) ForceIdle(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == domain.PhaseIdle {
		return
	}
	c.log.Info("match forced idle", "session_id", c.state.SessionID, "phase", c.state.Phase, "reason", reason)
	c.cancelTimers()
	c.latch.release()
	c.round = nil
	c.last = nil
	c.variant = nil
	c.state = domain.MatchState{Phase: domain.PhaseIdle}
	c.emit()
}

func (c *Controller) prepare(sessionID string, gameType domain.GameType, roundCount int, role domain.Role, solo bool) error {
	if c.active() {
		return ErrBusy
	}
	if !role.Valid() {
		return domain.NewValidationError("role", "must be initiator or responder")
	}
	variant, err := game.Lookup(gameType)
	if err != nil {
		return err
	}
	rounds, err := game.EffectiveRounds(gameType, roundCount)
	if err != nil {
		return err
	}

	c.cancelTimers()
	c.latch.release()
	c.variant = variant
	c.round = nil
	c.last = nil
	c.state = domain.MatchState{
		SessionID:       sessionID,
		GameType:        gameType,
		Phase:           domain.PhaseIdle,
		RoundCount:      rounds,
		IsSoloMode:      solo,
		ParticipantRole: role,
	}
	return nil
}

func (c *Controller) startMatch() {
	mode := domain.GameModePVP
	if c.state.IsSoloMode {
		mode = domain.GameModeSolo
	}
	metrics.MatchesStarted.WithLabelValues(string(c.state.GameType), string(mode)).Inc()
	c.log.Info("match started", "session_id", c.state.SessionID, "game", c.state.GameType, "rounds", c.state.RoundCount, "mode", mode)

	c.state.RoundIndex = 1
	c.beginRound()
}

func (c *Controller) beginRound() {
	c.round = nil
	c.botArmed = false
	c.timers = c.timers[:0]
	c.state.Phase = domain.PhaseRolling
	c.state.AwaitingSide = domain.SideNone
	c.emit()
	c.after(c.opts.Timings.Roll, "roll", c.onRolled)
}

func (c *Controller) onRolled() {
	if c.state.Phase != domain.PhaseRolling {
		c.dropped("roll")
		return
	}
	c.round = c.variant.NewRound(c.opts.Rand, game.RoundContext{
		Round:     c.state.RoundIndex,
		LocalRole: c.state.ParticipantRole,
	})
	c.advance()
}

// advance moves the round forward after a draw or a decision: it fills the
// remote side's decisions, arms the bot, or hands over to resolution.
func (c *Controller) advance() {
	pending := c.round.Pending()

	// remote decisions never cross contexts; the variant default stands in
	for !c.state.IsSoloMode && hasSide(pending, domain.SideB) {
		if err := c.round.Apply(domain.SideB, c.round.Default(domain.SideB)); err != nil {
			c.violation(fmt.Sprintf("remote default rejected: %v", err))
			break
		}
		pending = c.round.Pending()
	}

	if len(pending) == 0 {
		c.enterResolving()
		return
	}

	c.state.Phase = domain.PhaseAwaitingDecision
	c.state.AwaitingSide = domain.SideB
	if hasSide(pending, domain.SideA) {
		c.state.AwaitingSide = domain.SideA
	}
	if c.state.IsSoloMode && hasSide(pending, domain.SideB) && !c.botArmed {
		c.armBot()
	}
	c.emit()
}

func (c *Controller) armBot() {
	c.botArmed = true
	round := c.round
	c.after(c.opts.Bot.Delay(), "bot_decision", func() {
		c.botArmed = false
		if c.round != round {
			c.dropped("bot_decision")
			return
		}
		d, ok := c.opts.Bot.Decide(domain.SideB, round)
		if !ok {
			c.dropped("bot_decision")
			return
		}
		if err := c.receive(domain.SideB, d, "bot"); err != nil {
			c.log.Debug("bot decision rejected", "decision", d, "error", err)
		}
	})
}

// receive is the single entry point for decisions from either side.
func (c *Controller) receive(side domain.Side, d game.Decision, source string) error {
	if c.state.Phase != domain.PhaseAwaitingDecision || c.round == nil || c.latch.busy() {
		c.dropped("decision")
		return ErrNoDecisionExpected
	}
	if err := c.round.Apply(side, d); err != nil {
		return err
	}
	c.log.Debug("decision received", "side", side, "decision", d, "source", source)
	c.advance()
	return nil
}

func (c *Controller) enterResolving() {
	if !c.latch.acquire() {
		c.dropped("resolve")
		return
	}
	c.state.Phase = domain.PhaseResolving
	c.state.AwaitingSide = domain.SideNone
	c.emit()
	c.after(c.opts.Timings.Resolve, "resolve", c.onResolve)
}

func (c *Controller) onResolve() {
	if c.state.Phase != domain.PhaseResolving || c.round == nil {
		c.dropped("resolve")
		return
	}
	defer c.latch.release()

	outcome := c.round.Resolve()
	c.last = &outcome

	switch outcome.WinnerSide {
	case domain.SideA:
		c.state.ScoreA++
	case domain.SideB:
		c.state.ScoreB++
	}
	c.state.Phase = domain.PhaseRoundComplete
	c.checkInvariants()

	c.log.Debug("round resolved",
		"session_id", c.state.SessionID,
		"round", c.state.RoundIndex,
		"winner", outcome.WinnerSide,
		"reason", outcome.Reason,
		"score_a", c.state.ScoreA,
		"score_b", c.state.ScoreB,
	)

	if outcome.EndsMatch {
		c.finish(outcome.WinnerSide)
		return
	}

	if outcome.WinnerSide == domain.SideTie && !c.variant.TieConsumesRound() {
		// replay the same round index
		c.emit()
		c.after(c.opts.Timings.RoundPause, "next_round", c.beginRound)
		return
	}

	done, winner, extend := game.Verdict(c.state.ScoreA, c.state.ScoreB, c.state.RoundIndex, c.state.RoundCount)
	switch {
	case done:
		c.finish(winner)
	case extend:
		c.emit()
		c.state.Phase = domain.PhaseTiedExtend
		c.emit()
		c.after(c.opts.Timings.RoundPause, "next_round", c.beginRound)
	default:
		c.emit()
		c.state.RoundIndex++
		c.checkInvariants()
		c.after(c.opts.Timings.RoundPause, "next_round", c.beginRound)
	}
}

// finish runs under the latch held by onResolve.
func (c *Controller) finish(winner domain.Side) {
	if c.state.Phase == domain.PhaseComplete {
		c.dropped("finish")
		return
	}
	c.state.Phase = domain.PhaseComplete
	c.state.Winner = winner
	c.round = nil
	c.emit()

	result := domain.GameResultLose
	if winner == domain.SideA {
		result = domain.GameResultWin
	}
	metrics.MatchesCompleted.WithLabelValues(string(c.state.GameType), string(result)).Inc()
	c.log.Info("match complete",
		"session_id", c.state.SessionID,
		"game", c.state.GameType,
		"winner", winner,
		"score_a", c.state.ScoreA,
		"score_b", c.state.ScoreB,
	)

	c.report(winner == domain.SideA)
}

// report tells the profile collaborator about the result. It is not retried
// and never blocks further play.
func (c *Controller) report(isWinner bool) {
	rep := c.opts.Reporter
	if rep == nil {
		return
	}
	log := c.log.With("session_id", c.state.SessionID)
	timeout := c.opts.ReportTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := rep.ReportResult(ctx, isWinner); err != nil {
			metrics.ReportFailures.Inc()
			log.Warn("result report failed", "is_winner", isWinner, "error", err)
		}
	}()
}

// after schedules fn on the controller's clock. Callbacks from an earlier
// match (or one abandoned by ForceIdle) are discarded.
func (c *Controller) after(d time.Duration, trigger string, fn func()) {
	epoch := c.epoch
	t := c.opts.Clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if epoch != c.epoch {
			c.dropped(trigger)
			return
		}
		fn()
	})
	c.timers = append(c.timers, t)
}

func (c *Controller) cancelTimers() {
	c.epoch++
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.botArmed = false
}

func (c *Controller) dropped(trigger string) {
	metrics.RedundantTriggers.WithLabelValues(trigger).Inc()
	c.log.Debug("redundant trigger dropped", "trigger", trigger, "phase", c.state.Phase, "session_id", c.state.SessionID)
}

// checkInvariants enforces 1 <= roundIndex <= roundCount and
// scoreA+scoreB <= roundIndex.
func (c *Controller) checkInvariants() {
	s := &c.state
	if s.RoundIndex >= 1 && s.RoundIndex <= s.RoundCount && s.ScoreA+s.ScoreB <= s.RoundIndex {
		return
	}
	c.violation(fmt.Sprintf("round %d of %d with score %d:%d", s.RoundIndex, s.RoundCount, s.ScoreA, s.ScoreB))

	s.RoundIndex = min(max(s.RoundIndex, 1), s.RoundCount)
	s.ScoreA = min(s.ScoreA, s.RoundIndex)
	s.ScoreB = min(s.ScoreB, s.RoundIndex-s.ScoreA)
}

func (c *Controller) violation(msg string) {
	if c.opts.Strict {
		panic("match: invariant violated: " + msg)
	}
	metrics.InvariantViolations.Inc()
	c.log.Error("match invariant violated", "detail", msg, "session_id", c.state.SessionID)
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{State: c.state, LastOutcome: c.last}
	if c.round != nil {
		snap.Round = c.round.View()
		if c.state.Phase == domain.PhaseAwaitingDecision {
			snap.Options = c.round.Options(domain.SideA)
		}
	}
	return snap
}

func (c *Controller) emit() {
	if c.opts.Observer != nil {
		c.opts.Observer(c.snapshot())
	}
}

func hasSide(sides []domain.Side, side domain.Side) bool {
	for _, s := range sides {
		if s == side {
			return true
		}
	}
	return false
}
