package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
	"duel_webapp/internal/logger"
	"duel_webapp/internal/metrics"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const DefaultTTL = time.Hour

// Publisher pushes directory snapshots to the other execution contexts.
type Publisher interface {
	Publish(ctx context.Context, snap domain.DirectorySnapshot) error
}

// CreateRequest carries the creator's input for a new session.
type CreateRequest struct {
	GameType    domain.GameType
	Role        domain.Role
	DisplayName string
	CreatorID   int64
	RoundCount  int
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Role     domain.Role
	GameType domain.GameType
}

func (f Filter) match(rec domain.SessionRecord) bool {
	if f.Role != "" && rec.CreatorRole != f.Role {
		return false
	}
	if f.GameType != "" && rec.GameType != f.GameType {
		return false
	}
	return true
}

// Directory is this context's view of the open sessions. Every local mutation
// is published; snapshots from other contexts replace the view wholesale.
type Directory struct {
	mu      sync.Mutex
	records []domain.SessionRecord
	stamp   int64

	// pubMu orders publishes so the durable slot never goes back in time
	pubMu     sync.Mutex
	publisher Publisher

	origin string
	clock  clockwork.Clock
	ttl    time.Duration
	log    *slog.Logger
}

type Option func(*Directory)

func WithClock(c clockwork.Clock) Option { return func(d *Directory) { d.clock = c } }
func WithTTL(ttl time.Duration) Option   { return func(d *Directory) { d.ttl = ttl } }
func WithPublisher(p Publisher) Option   { return func(d *Directory) { d.publisher = p } }

func NewDirectory(origin string, opts ...Option) *Directory {
	d := &Directory{
		origin: origin,
		clock:  clockwork.NewRealClock(),
		ttl:    DefaultTTL,
		log:    logger.With("component", "directory", "origin", origin),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetPublisher attaches the bus after construction.
func (d *Directory) SetPublisher(p Publisher) {
	d.pubMu.Lock()
	d.publisher = p
	d.pubMu.Unlock()
}

func (d *Directory) Origin() string { return d.origin }

// Create validates the request and appends a new record.
func (d *Directory) Create(ctx context.Context, req CreateRequest) (domain.SessionRecord, error) {
	rec, err := d.NewRecord(req)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	d.Add(ctx, rec)
	return rec, nil
}

// NewRecord validates req and builds its record without advertising it.
// Callers that must be ready for a join before the session becomes visible
// use it together with Add.
func (d *Directory) NewRecord(req CreateRequest) (domain.SessionRecord, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return domain.SessionRecord{}, domain.NewValidationError("display_name", "must not be empty")
	}
	if !req.Role.Valid() {
		return domain.SessionRecord{}, domain.NewValidationError("role", "must be initiator or responder")
	}
	rounds, err := game.EffectiveRounds(req.GameType, req.RoundCount)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	return domain.SessionRecord{
		ID:          uuid.NewString(),
		GameType:    req.GameType,
		CreatorRole: req.Role,
		CreatorName: name,
		CreatorID:   req.CreatorID,
		RoundCount:  rounds,
		CreatedAt:   d.clock.Now().UTC(),
	}, nil
}

// Add appends a record built by NewRecord and publishes the directory.
func (d *Directory) Add(ctx context.Context, rec domain.SessionRecord) {
	d.mu.Lock()
	d.records = append(d.records, rec)
	d.mu.Unlock()

	metrics.SessionsCreated.WithLabelValues(string(rec.GameType)).Inc()
	d.log.Info("session created", "session_id", rec.ID, "game", rec.GameType, "role", rec.CreatorRole, "rounds", rec.RoundCount)
	d.publish(ctx)
}

// List returns the open records in insertion order. Expired records are
// purged on the way.
func (d *Directory) List(ctx context.Context, f Filter) []domain.SessionRecord {
	d.mu.Lock()
	purged := d.purgeLocked()
	out := make([]domain.SessionRecord, 0, len(d.records))
	for _, rec := range d.records {
		if f.match(rec) {
			out = append(out, rec)
		}
	}
	d.mu.Unlock()

	if purged > 0 {
		d.publish(ctx)
	}
	return out
}

// Sessions is List without the purge: it never publishes, so bus handlers
// may call it while a publish is in flight.
func (d *Directory) Sessions(f Filter) []domain.SessionRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock.Now()
	out := make([]domain.SessionRecord, 0, len(d.records))
	for _, rec := range d.records {
		if f.match(rec) && !rec.Expired(now, d.ttl) {
			out = append(out, rec)
		}
	}
	return out
}

// Get looks up one open record.
func (d *Directory) Get(id string) (domain.SessionRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.indexLocked(id); i >= 0 && !d.records[i].Expired(d.clock.Now(), d.ttl) {
		return d.records[i], true
	}
	return domain.SessionRecord{}, false
}

// Cancel removes the record if present. It reports whether anything was removed.
func (d *Directory) Cancel(ctx context.Context, id string) bool {
	d.mu.Lock()
	i := d.indexLocked(id)
	if i < 0 {
		d.mu.Unlock()
		return false
	}
	d.removeLocked(i)
	d.mu.Unlock()

	metrics.SessionsCancelled.Inc()
	d.log.Info("session cancelled", "session_id", id)
	d.publish(ctx)
	return true
}

// CancelByCreator removes every record the given user still owns.
func (d *Directory) CancelByCreator(ctx context.Context, creatorID int64) []domain.SessionRecord {
	d.mu.Lock()
	var removed []domain.SessionRecord
	kept := d.records[:0]
	for _, rec := range d.records {
		if rec.CreatorID == creatorID {
			removed = append(removed, rec)
			continue
		}
		kept = append(kept, rec)
	}
	d.records = kept
	d.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}
	metrics.SessionsCancelled.Add(float64(len(removed)))
	d.log.Info("sessions released", "creator_id", creatorID, "count", len(removed))
	d.publish(ctx)
	return removed
}

// Join claims a record for a participant holding role. The record leaves the
// directory before Join returns, so no second local joiner can claim it.
func (d *Directory) Join(ctx context.Context, id string, role domain.Role) (domain.SessionRecord, error) {
	if !role.Valid() {
		return domain.SessionRecord{}, domain.NewValidationError("role", "must be initiator or responder")
	}
	d.mu.Lock()
	i := d.indexLocked(id)
	if i < 0 {
		d.mu.Unlock()
		return domain.SessionRecord{}, domain.ErrNotFound
	}
	rec := d.records[i]
	if rec.Expired(d.clock.Now(), d.ttl) {
		d.removeLocked(i)
		d.mu.Unlock()
		metrics.SessionsExpired.Inc()
		d.publish(ctx)
		return domain.SessionRecord{}, domain.ErrNotFound
	}
	if rec.CreatorRole == role {
		d.mu.Unlock()
		return domain.SessionRecord{}, domain.ErrRoleConflict
	}
	d.removeLocked(i)
	d.mu.Unlock()

	metrics.SessionsJoined.WithLabelValues(string(rec.GameType)).Inc()
	d.log.Info("session joined", "session_id", rec.ID, "game", rec.GameType)
	d.publish(ctx)
	return rec, nil
}

// Purge drops expired records and publishes when anything changed.
func (d *Directory) Purge(ctx context.Context) int {
	d.mu.Lock()
	n := d.purgeLocked()
	d.mu.Unlock()
	if n > 0 {
		d.publish(ctx)
	}
	return n
}

// Replace swaps in a snapshot received from the bus. Own echoes and snapshots
// older than the current view are ignored. Invalid and expired records are
// dropped silently. Replace never republishes.
func (d *Directory) Replace(snap domain.DirectorySnapshot) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if snap.Origin == d.origin || snap.Stamp <= d.stamp {
		return false
	}

	now := d.clock.Now()
	records := make([]domain.SessionRecord, 0, len(snap.Sessions))
	for _, rec := range snap.Sessions {
		switch {
		case !rec.Complete():
			metrics.SessionsDropped.Inc()
		case rec.Expired(now, d.ttl):
			metrics.SessionsExpired.Inc()
		default:
			records = append(records, rec)
		}
	}
	d.records = records
	d.stamp = snap.Stamp
	return true
}

func (d *Directory) indexLocked(id string) int {
	for i, rec := range d.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) removeLocked(i int) {
	d.records = append(d.records[:i], d.records[i+1:]...)
}

func (d *Directory) purgeLocked() int {
	now := d.clock.Now()
	kept := d.records[:0]
	for _, rec := range d.records {
		if rec.Expired(now, d.ttl) {
			continue
		}
		kept = append(kept, rec)
	}
	n := len(d.records) - len(kept)
	d.records = kept
	if n > 0 {
		metrics.SessionsExpired.Add(float64(n))
		d.log.Debug("expired sessions purged", "count", n)
	}
	return n
}

// snapshot stamps the current view. Stamps only move forward.
func (d *Directory) snapshot() domain.DirectorySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stamp = max(d.clock.Now().UnixNano(), d.stamp+1)
	sessions := make([]domain.SessionRecord, len(d.records))
	copy(sessions, d.records)
	return domain.DirectorySnapshot{Origin: d.origin, Stamp: d.stamp, Sessions: sessions}
}

func (d *Directory) publish(ctx context.Context) {
	d.pubMu.Lock()
	defer d.pubMu.Unlock()

	snap := d.snapshot()
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, snap); err != nil {
		d.log.Warn("directory publish failed", "stamp", snap.Stamp, "error", err)
	}
}
