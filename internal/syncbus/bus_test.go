package syncbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/session"

	"github.com/jonboulle/clockwork"
)

// fanout is an in-process live channel shared by several buses.
type fanout struct {
	mu   sync.Mutex
	next int
	subs map[int]func([]byte)
}

func newFanout() *fanout { return &fanout{subs: make(map[int]func([]byte))} }

func (f *fanout) Broadcast(_ context.Context, payload []byte) error {
	f.mu.Lock()
	subs := make([]func([]byte), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(payload)
	}
	return nil
}

func (f *fanout) Listen(ctx context.Context, fn func([]byte)) error {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fanout) listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type joinRecorder struct {
	mu      sync.Mutex
	session string
	got     []domain.JoinNotification
}

func (r *joinRecorder) handle(n domain.JoinNotification) bool {
	if n.SessionID != r.session {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return true
}

func (r *joinRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func record(clock clockwork.Clock, id string) domain.SessionRecord {
	return domain.SessionRecord{
		ID:          id,
		GameType:    domain.GameTypeCoinflip,
		CreatorRole: domain.RoleInitiator,
		CreatorName: "alice",
		RoundCount:  3,
		CreatedAt:   clock.Now(),
	}
}

func TestDirectoryReplicatesThroughDurableStore(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	busA := New(store, nil, clock, Config{Origin: "a"})
	busB := New(store, nil, clock, Config{Origin: "b"})
	dirA := session.NewDirectory("a", session.WithClock(clock), session.WithPublisher(busA))
	dirB := session.NewDirectory("b", session.WithClock(clock), session.WithPublisher(busB))
	busA.Subscribe(func(s domain.DirectorySnapshot) { dirA.Replace(s) })
	busB.Subscribe(func(s domain.DirectorySnapshot) { dirB.Replace(s) })

	rec, err := dirA.Create(ctx, session.CreateRequest{GameType: domain.GameTypeNvuti, Role: domain.RoleInitiator, DisplayName: "alice", RoundCount: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	busB.poll(ctx)
	if _, ok := dirB.Get(rec.ID); !ok {
		t.Fatalf("context b never saw the session")
	}

	if _, err := dirB.Join(ctx, rec.ID, domain.RoleResponder); err != nil {
		t.Fatalf("Join on b: %v", err)
	}
	busA.poll(ctx)
	if list := dirA.List(ctx, session.Filter{}); len(list) != 0 {
		t.Fatalf("context a still lists the joined session: %+v", list)
	}
}

func TestLoadDropsExpiredRecords(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	old := record(clock, "old")
	old.CreatedAt = clock.Now().Add(-2 * time.Hour)
	fresh := record(clock, "fresh")
	data, _ := json.Marshal(domain.DirectorySnapshot{Origin: "gone", Stamp: 1, Sessions: []domain.SessionRecord{old, fresh}})
	_ = store.Set(ctx, DirectoryKey, data, 0)

	bus := New(store, nil, clock, Config{Origin: "new"})
	dir := session.NewDirectory("new", session.WithClock(clock), session.WithPublisher(bus))
	bus.Subscribe(func(s domain.DirectorySnapshot) { dir.Replace(s) })

	if err := bus.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	list := dir.List(ctx, session.Filter{})
	if len(list) != 1 || list[0].ID != "fresh" {
		t.Fatalf("list after load = %+v; want only the fresh record", list)
	}
}

func TestLoadIgnoresCorruptSlot(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	_ = store.Set(context.Background(), DirectoryKey, []byte("{not json"), 0)

	bus := New(store, nil, clock, Config{Origin: "x"})
	called := false
	bus.Subscribe(func(domain.DirectorySnapshot) { called = true })
	if err := bus.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if called {
		t.Fatalf("corrupt slot delivered to subscribers")
	}
}

func TestNotifyJoinLocalDelivery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()
	bus := New(store, nil, clock, Config{Origin: "a"})

	rec := &joinRecorder{session: "s-1"}
	bus.OnJoin(rec.handle)

	if err := bus.NotifyJoin(ctx, domain.JoinNotification{SessionID: "s-1", RoundCount: 3}); err != nil {
		t.Fatalf("NotifyJoin: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("local creator got %d notifications; want 1", rec.count())
	}
	if _, err := store.Get(ctx, JoinKey); err != ErrMissing {
		t.Fatalf("consumed join left in the durable slot (err=%v)", err)
	}
}

func TestJoinDeliveredThroughStoreOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	joiner := New(store, nil, clock, Config{Origin: "joiner"})
	creator := New(store, nil, clock, Config{Origin: "creator"})
	rec := &joinRecorder{session: "s-1"}
	creator.OnJoin(rec.handle)

	if err := joiner.NotifyJoin(ctx, domain.JoinNotification{SessionID: "s-1", RoundCount: 5, GameType: domain.GameTypeSumDice}); err != nil {
		t.Fatalf("NotifyJoin: %v", err)
	}
	clock.Advance(500 * time.Millisecond)
	creator.poll(ctx)
	creator.poll(ctx)

	if rec.count() != 1 {
		t.Fatalf("creator got %d notifications; want exactly 1", rec.count())
	}
	if rec.got[0].RoundCount != 5 {
		t.Fatalf("round count = %d; want 5", rec.got[0].RoundCount)
	}
}

func TestStaleJoinIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	n := domain.JoinNotification{SessionID: "s-1", RoundCount: 3, Timestamp: clock.Now().Add(-6 * time.Second)}
	data, _ := json.Marshal(n)
	_ = store.Set(ctx, JoinKey, data, 0)

	bus := New(store, nil, clock, Config{Origin: "creator"})
	rec := &joinRecorder{session: "s-1"}
	bus.OnJoin(rec.handle)
	bus.poll(ctx)

	if rec.count() != 0 {
		t.Fatalf("stale join resurrected a session")
	}
	if _, err := store.Get(ctx, JoinKey); err != ErrMissing {
		t.Fatalf("stale join left in the slot (err=%v)", err)
	}
}

func TestLiveAndStoreDeduplicated(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()
	bus := New(store, nil, clock, Config{Origin: "creator"})
	rec := &joinRecorder{session: "s-1"}
	bus.OnJoin(rec.handle)

	n := domain.JoinNotification{SessionID: "s-1", RoundCount: 3, Timestamp: clock.Now()}
	payload, _ := json.Marshal(Envelope{Kind: KindJoin, Origin: "joiner", Join: &n})
	bus.onLive(payload)

	// the joiner's durable write lands after the live message
	data, _ := json.Marshal(n)
	_ = store.Set(ctx, JoinKey, data, 0)
	bus.poll(ctx)

	if rec.count() != 1 {
		t.Fatalf("handler ran %d times; want 1", rec.count())
	}
}

func TestOwnEchoIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := New(NewMemoryStore(clock), nil, clock, Config{Origin: "a"})
	got := 0
	bus.Subscribe(func(domain.DirectorySnapshot) { got++ })

	payload, _ := json.Marshal(Envelope{Kind: KindDirectory, Origin: "a", Directory: &domain.DirectorySnapshot{Origin: "a", Stamp: 5}})
	bus.onLive(payload)
	if got != 0 {
		t.Fatalf("own echo delivered")
	}
}

func TestLiveChannelDelivery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	live := newFanout()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	busA := New(store, live, clock, Config{Origin: "a"})
	busB := New(store, live, clock, Config{Origin: "b"})

	snaps := make(chan domain.DirectorySnapshot, 4)
	busB.Subscribe(func(s domain.DirectorySnapshot) { snaps <- s })
	go busB.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for live.listeners() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("bus never started listening")
		}
		time.Sleep(time.Millisecond)
	}

	snap := domain.DirectorySnapshot{Origin: "a", Stamp: 42, Sessions: []domain.SessionRecord{record(clock, "s-9")}}
	if err := busA.Publish(ctx, snap); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-snaps:
		if got.Stamp != 42 || len(got.Sessions) != 1 {
			t.Fatalf("received %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("snapshot never arrived over the live channel")
	}
}

func TestPollIntervalClamped(t *testing.T) {
	bus := New(NewMemoryStore(nil), nil, nil, Config{PollInterval: 10 * time.Second})
	if bus.cfg.PollInterval != MaxPollInterval {
		t.Fatalf("poll interval = %v; want %v", bus.cfg.PollInterval, MaxPollInterval)
	}
	if bus.cfg.Freshness != DefaultFreshness {
		t.Fatalf("freshness = %v", bus.cfg.Freshness)
	}
}
