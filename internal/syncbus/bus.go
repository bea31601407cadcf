package syncbus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/logger"
	"duel_webapp/internal/metrics"

	"github.com/jonboulle/clockwork"
)

const (
	DirectoryKey = "duel:directory"
	JoinKey      = "duel:join"

	DefaultFreshness = 5 * time.Second
	MaxPollInterval  = time.Second

	KindDirectory = "directory"
	KindJoin      = "join"
)

// Broadcaster is the live channel between running contexts.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
	// Listen blocks, feeding every received payload to fn.
	Listen(ctx context.Context, fn func([]byte)) error
}

// Envelope is the wire form of everything sent over the live channel.
type Envelope struct {
	Kind      string                    `json:"kind"`
	Origin    string                    `json:"origin"`
	Directory *domain.DirectorySnapshot `json:"directory,omitempty"`
	Join      *domain.JoinNotification  `json:"join,omitempty"`
}

type Config struct {
	Origin string
	// Freshness bounds how old a durable join notification may be when acted on.
	Freshness time.Duration
	// PollInterval is clamped to MaxPollInterval.
	PollInterval time.Duration
}

// Bus replicates directory snapshots and join notifications across contexts
// through three channels: the durable store, the live broadcaster (optional)
// and in-process delivery to local handlers.
//
// Handlers run on the delivering goroutine. They must not block and must not
// publish.
type Bus struct {
	store Store
	live  Broadcaster
	clock clockwork.Clock
	cfg   Config
	log   *slog.Logger

	mu           sync.RWMutex
	nextID       int
	dirHandlers  map[int]func(domain.DirectorySnapshot)
	joinHandlers map[int]func(domain.JoinNotification) bool

	seenMu sync.Mutex
	seen   map[string]time.Time

	dirStamp atomic.Int64
	liveUp   atomic.Bool
}

func New(store Store, live Broadcaster, clock clockwork.Clock, cfg Config) *Bus {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.PollInterval <= 0 || cfg.PollInterval > MaxPollInterval {
		cfg.PollInterval = MaxPollInterval
	}
	return &Bus{
		store:        store,
		live:         live,
		clock:        clock,
		cfg:          cfg,
		log:          logger.With("component", "syncbus", "origin", cfg.Origin),
		dirHandlers:  make(map[int]func(domain.DirectorySnapshot)),
		joinHandlers: make(map[int]func(domain.JoinNotification) bool),
		seen:         make(map[string]time.Time),
	}
}

// Subscribe registers a directory snapshot handler and returns its removal func.
func (b *Bus) Subscribe(fn func(domain.DirectorySnapshot)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.dirHandlers[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.dirHandlers, id)
		b.mu.Unlock()
	}
}

// OnJoin registers a join handler. A handler returns true when it consumed the
// notification, i.e. it was the waiting creator.
func (b *Bus) OnJoin(fn func(domain.JoinNotification) bool) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.joinHandlers[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.joinHandlers, id)
		b.mu.Unlock()
	}
}

// Publish pushes a full directory snapshot on every channel. A failing
// channel does not stop the others.
func (b *Bus) Publish(ctx context.Context, snap domain.DirectorySnapshot) error {
	var errs []error

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := b.store.Set(ctx, DirectoryKey, data, 0); err != nil {
		errs = append(errs, err)
	}
	if err := b.broadcast(ctx, Envelope{Kind: KindDirectory, Origin: b.cfg.Origin, Directory: &snap}); err != nil {
		errs = append(errs, err)
	}

	b.noteStamp(snap.Stamp)
	b.deliverDirectory(snap)
	metrics.SnapshotsPublished.Inc()
	return errors.Join(errs...)
}

// NotifyJoin wakes the creator of n.SessionID, wherever it runs.
func (b *Bus) NotifyJoin(ctx context.Context, n domain.JoinNotification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = b.clock.Now().UTC()
	}
	var errs []error

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := b.store.Set(ctx, JoinKey, data, 2*b.cfg.Freshness); err != nil {
		errs = append(errs, err)
	}
	if err := b.broadcast(ctx, Envelope{Kind: KindJoin, Origin: b.cfg.Origin, Join: &n}); err != nil {
		errs = append(errs, err)
	}

	b.deliverJoin(ctx, n, "local")
	return errors.Join(errs...)
}

// Load reads the durable directory slot and hands it to the subscribers.
// Called once when a context starts.
func (b *Bus) Load(ctx context.Context) error {
	snap, ok, err := b.readDirectory(ctx)
	if err != nil || !ok {
		return err
	}
	b.noteStamp(snap.Stamp)
	b.deliverDirectory(snap)
	return nil
}

// Run listens on the live channel and polls the durable store until ctx ends.
func (b *Bus) Run(ctx context.Context) error {
	if b.live != nil {
		go b.listen(ctx)
	}

	ticker := b.clock.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			b.poll(ctx)
		}
	}
}

func (b *Bus) listen(ctx context.Context) {
	for ctx.Err() == nil {
		b.liveUp.Store(true)
		err := b.live.Listen(ctx, b.onLive)
		b.liveUp.Store(false)
		if ctx.Err() != nil {
			return
		}
		b.log.Warn("live channel lost, falling back to polling", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-b.clock.After(time.Second):
		}
	}
}

func (b *Bus) onLive(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.log.Debug("bad envelope on live channel", "error", err)
		return
	}
	if env.Origin == b.cfg.Origin {
		return
	}
	switch {
	case env.Kind == KindDirectory && env.Directory != nil:
		b.noteStamp(env.Directory.Stamp)
		b.deliverDirectory(*env.Directory)
	case env.Kind == KindJoin && env.Join != nil:
		b.deliverJoin(context.Background(), *env.Join, "live")
	}
}

// poll is the fallback path: the join slot is always checked, the directory
// slot only while the live channel is down.
func (b *Bus) poll(ctx context.Context) {
	b.pollJoin(ctx)
	if !b.liveUp.Load() {
		b.pollDirectory(ctx)
	}
	b.pruneSeen()
}

func (b *Bus) pollJoin(ctx context.Context) {
	data, err := b.store.Get(ctx, JoinKey)
	if errors.Is(err, ErrMissing) {
		return
	}
	if err != nil {
		b.log.Debug("join slot read failed", "error", err)
		return
	}

	var n domain.JoinNotification
	if err := json.Unmarshal(data, &n); err != nil || n.SessionID == "" {
		_ = b.store.Delete(ctx, JoinKey)
		return
	}
	if !n.Fresh(b.clock.Now(), b.cfg.Freshness) {
		metrics.JoinsStale.Inc()
		b.log.Debug("stale join notification dropped", "session_id", n.SessionID, "timestamp", n.Timestamp)
		b.clearJoinSlot(ctx, n)
		return
	}
	b.deliverJoin(ctx, n, "store")
}

func (b *Bus) pollDirectory(ctx context.Context) {
	snap, ok, err := b.readDirectory(ctx)
	if err != nil {
		b.log.Debug("directory slot read failed", "error", err)
		return
	}
	if !ok || snap.Stamp <= b.dirStamp.Load() {
		return
	}
	b.noteStamp(snap.Stamp)
	b.deliverDirectory(snap)
}

func (b *Bus) readDirectory(ctx context.Context) (domain.DirectorySnapshot, bool, error) {
	var snap domain.DirectorySnapshot
	data, err := b.store.Get(ctx, DirectoryKey)
	if errors.Is(err, ErrMissing) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		// a corrupt slot reads as empty
		b.log.Warn("unreadable directory slot ignored", "error", err)
		return snap, false, nil
	}
	return snap, true, nil
}

func (b *Bus) broadcast(ctx context.Context, env Envelope) error {
	if b.live == nil {
		return nil
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.live.Broadcast(ctx, payload)
}

func (b *Bus) deliverDirectory(snap domain.DirectorySnapshot) {
	b.mu.RLock()
	handlers := make([]func(domain.DirectorySnapshot), 0, len(b.dirHandlers))
	for _, fn := range b.dirHandlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(snap)
	}
}

// deliverJoin hands n to the join handlers once per (session, timestamp),
// whichever channel brings it first.
func (b *Bus) deliverJoin(ctx context.Context, n domain.JoinNotification, channel string) bool {
	key := n.SessionID + "|" + strconv.FormatInt(n.Timestamp.UnixNano(), 10)

	b.seenMu.Lock()
	if _, dup := b.seen[key]; dup {
		b.seenMu.Unlock()
		return false
	}
	b.seen[key] = b.clock.Now()
	b.seenMu.Unlock()

	b.mu.RLock()
	handlers := make([]func(domain.JoinNotification) bool, 0, len(b.joinHandlers))
	for _, fn := range b.joinHandlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	consumed := false
	for _, fn := range handlers {
		if fn(n) {
			consumed = true
		}
	}
	if consumed {
		metrics.JoinsDelivered.WithLabelValues(channel).Inc()
		b.log.Debug("join notification consumed", "session_id", n.SessionID, "channel", channel)
		b.clearJoinSlot(ctx, n)
	}
	return consumed
}

// clearJoinSlot deletes the durable join slot if it still holds n.
func (b *Bus) clearJoinSlot(ctx context.Context, n domain.JoinNotification) {
	want, err := json.Marshal(n)
	if err != nil {
		return
	}
	got, err := b.store.Get(ctx, JoinKey)
	if err != nil || !bytes.Equal(got, want) {
		return
	}
	if err := b.store.Delete(ctx, JoinKey); err != nil {
		b.log.Debug("join slot clear failed", "error", err)
	}
}

func (b *Bus) noteStamp(stamp int64) {
	for {
		cur := b.dirStamp.Load()
		if stamp <= cur || b.dirStamp.CompareAndSwap(cur, stamp) {
			return
		}
	}
}

func (b *Bus) pruneSeen() {
	cutoff := b.clock.Now().Add(-4 * b.cfg.Freshness)
	b.seenMu.Lock()
	defer b.seenMu.Unlock()
	for key, at := range b.seen {
		if at.Before(cutoff) {
			delete(b.seen, key)
		}
	}
}
