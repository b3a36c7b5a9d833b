package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/model"
)

type saveCall struct {
	notes model.Collection
	occ   model.Occupancy
}

// fakeStore - документ в памяти с записью всех вызовов Save
type fakeStore struct {
	mu      sync.Mutex
	doc     model.Document
	saves   []saveCall
	loads   int
	loadErr error
	saveErr error
	// onLoad вызывается перед каждым чтением и может менять документ
	onLoad func(n int, doc *model.Document)
}

func (f *fakeStore) Load(ctx context.Context) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.onLoad != nil {
		f.onLoad(f.loads, &f.doc)
	}
	if f.loadErr != nil {
		return model.Document{}, f.loadErr
	}
	return model.Document{Notes: f.doc.Notes.Clone(), Occupancy: f.doc.Occupancy}, nil
}

func (f *fakeStore) Save(ctx context.Context, notes model.Collection, occ model.Occupancy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.saves = append(f.saves, saveCall{notes: notes.Clone(), occ: occ})
	f.doc = model.Document{Notes: notes.Clone(), Occupancy: occ}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestLock(store Store, clock *fakeClock, opts Options) *Lock {
	opts.Now = clock.Now
	opts.Backoff.Sleep = clock.Sleep
	return New(store, opts, zap.NewNop().Sugar())
}

var notesA = model.Collection{{ID: "1", Kind: model.KindClassic, Title: "A"}}

func TestStateOf(t *testing.T) {
	assert.Equal(t, Free, StateOf(model.Occupancy{}))
	assert.Equal(t, Occupied, StateOf(model.Occupancy{Occupied: true}))
	assert.Equal(t, "occupied", Occupied.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestTryAcquire_FreeWritesClaimWithUnchangedNotes(t *testing.T) {
	store := &fakeStore{}
	l := newTestLock(store, newClock(), Options{})

	lease, err := l.TryAcquire(context.Background(), model.Document{Notes: notesA})
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Empty(t, lease.Owner)
	assert.False(t, lease.Reclaimed)

	require.Len(t, store.saves, 1)
	assert.Equal(t, notesA, store.saves[0].notes)
	assert.Equal(t, model.Occupancy{Occupied: true}, store.saves[0].occ)
}

func TestTryAcquire_OccupiedIsContendedWithoutStore(t *testing.T) {
	store := &fakeStore{}
	l := newTestLock(store, newClock(), Options{})

	_, err := l.TryAcquire(context.Background(), model.Document{Occupancy: model.Occupancy{Occupied: true}})
	assert.ErrorIs(t, err, ErrContended)
	assert.Empty(t, store.saves)
}

func TestTryAcquire_ClaimFailure(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("network down")}
	l := newTestLock(store, newClock(), Options{})

	_, err := l.TryAcquire(context.Background(), model.Document{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim")
	assert.NotErrorIs(t, err, ErrContended)
}

func TestTryAcquire_LeaseWritesOwnerAndExpiry(t *testing.T) {
	clock := newClock()
	store := &fakeStore{}
	l := newTestLock(store, clock, Options{
		LeaseTTL: 30 * time.Second,
		NewOwner: func() string { return "owner-1" },
	})

	lease, err := l.TryAcquire(context.Background(), model.Document{})
	require.NoError(t, err)
	assert.Equal(t, "owner-1", lease.Owner)
	assert.Equal(t, clock.Now().Add(30*time.Second), lease.ExpiresAt)

	require.Len(t, store.saves, 1)
	assert.Equal(t, model.Occupancy{Occupied: true, Owner: "owner-1", ExpiresAt: lease.ExpiresAt}, store.saves[0].occ)
}

func TestTryAcquire_ReclaimsExpiredLease(t *testing.T) {
	clock := newClock()
	store := &fakeStore{}
	l := newTestLock(store, clock, Options{LeaseTTL: time.Minute, NewOwner: func() string { return "me" }})

	stale := model.Document{Notes: notesA, Occupancy: model.Occupancy{
		Occupied:  true,
		Owner:     "crashed",
		ExpiresAt: clock.Now().Add(-time.Second),
	}}
	lease, err := l.TryAcquire(context.Background(), stale)
	require.NoError(t, err)
	assert.True(t, lease.Reclaimed)
	assert.Equal(t, "me", store.doc.Occupancy.Owner)
	assert.Equal(t, notesA, store.doc.Notes)
}

func TestTryAcquire_NeverReclaimsWithoutExpiry(t *testing.T) {
	l := newTestLock(&fakeStore{}, newClock(), Options{LeaseTTL: time.Minute})

	_, err := l.TryAcquire(context.Background(), model.Document{Occupancy: model.Occupancy{Occupied: true, Owner: "x"}})
	assert.ErrorIs(t, err, ErrContended)
}

func TestAcquire_WaitsUntilFree(t *testing.T) {
	clock := newClock()
	store := &fakeStore{
		doc: model.Document{Notes: notesA, Occupancy: model.Occupancy{Occupied: true}},
		onLoad: func(n int, doc *model.Document) {
			// Другой клиент освобождает документ к третьему чтению
			if n == 3 {
				doc.Occupancy = model.Occupancy{}
			}
		},
	}
	start := clock.Now()
	l := newTestLock(store, clock, Options{Backoff: Backoff{Interval: 500 * time.Millisecond}})

	lease, doc, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, notesA, doc.Notes)
	assert.Equal(t, 3, store.loads)
	assert.Equal(t, time.Second, clock.Now().Sub(start))
	require.Len(t, store.saves, 1)
	assert.True(t, store.saves[0].occ.Occupied)
}

func TestAcquire_MaxAttempts(t *testing.T) {
	store := &fakeStore{doc: model.Document{Occupancy: model.Occupancy{Occupied: true}}}
	l := newTestLock(store, newClock(), Options{Backoff: Backoff{Interval: time.Second, MaxAttempts: 3}})

	_, _, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, store.loads)
	assert.Empty(t, store.saves)
}

func TestAcquire_Deadline(t *testing.T) {
	store := &fakeStore{doc: model.Document{Occupancy: model.Occupancy{Occupied: true}}}
	l := newTestLock(store, newClock(), Options{Backoff: Backoff{Interval: 500 * time.Millisecond, Deadline: time.Second}})

	_, _, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	// Попытки в 0, 500ms и 1s, следующая вышла бы за deadline
	assert.Equal(t, 3, store.loads)
}

func TestAcquire_ContextCanceledDuringBackoff(t *testing.T) {
	store := &fakeStore{doc: model.Document{Occupancy: model.Occupancy{Occupied: true}}}
	l := New(store, Options{Backoff: Backoff{Interval: time.Hour}}, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.saves)
}

func TestAcquire_LoadErrorFailsFast(t *testing.T) {
	loadErr := errors.New("fetch failed")
	store := &fakeStore{loadErr: loadErr}
	l := newTestLock(store, newClock(), Options{})

	_, _, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, loadErr)
	assert.Equal(t, 1, store.loads)
}

func TestRelease_WritesNotesAndClearsFlag(t *testing.T) {
	store := &fakeStore{}
	l := newTestLock(store, newClock(), Options{})

	lease, err := l.TryAcquire(context.Background(), model.Document{})
	require.NoError(t, err)
	require.NoError(t, l.Release(context.Background(), lease, notesA))

	require.Len(t, store.saves, 2)
	assert.Equal(t, notesA, store.saves[1].notes)
	assert.Equal(t, model.Occupancy{}, store.saves[1].occ)
}

func TestRelease_RunsAfterCallerCancel(t *testing.T) {
	store := &fakeStore{}
	l := newTestLock(store, newClock(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	lease, err := l.TryAcquire(ctx, model.Document{})
	require.NoError(t, err)
	cancel()

	require.NoError(t, l.Release(ctx, lease, notesA))
	assert.False(t, store.doc.Occupancy.Occupied)
}

func TestRelease_LeaseLost(t *testing.T) {
	clock := newClock()
	store := &fakeStore{}
	l := newTestLock(store, clock, Options{LeaseTTL: time.Second, NewOwner: func() string { return "me" }})

	lease, err := l.TryAcquire(context.Background(), model.Document{Notes: notesA})
	require.NoError(t, err)

	// Аренда истекла, документ перехватил другой клиент
	store.doc.Occupancy = model.Occupancy{Occupied: true, Owner: "other", ExpiresAt: clock.Now().Add(time.Minute)}

	err = l.Release(context.Background(), lease, model.Collection{})
	assert.ErrorIs(t, err, ErrLeaseLost)
	assert.Len(t, store.saves, 1)
	assert.Equal(t, "other", store.doc.Occupancy.Owner)
}

func TestRelease_LeaseStillHeld(t *testing.T) {
	store := &fakeStore{}
	l := newTestLock(store, newClock(), Options{LeaseTTL: time.Second})

	lease, err := l.TryAcquire(context.Background(), model.Document{})
	require.NoError(t, err)
	require.NoError(t, l.Release(context.Background(), lease, notesA))
	assert.Equal(t, model.Occupancy{}, store.doc.Occupancy)
}

func TestBackoff_JitterBounds(t *testing.T) {
	var slept []time.Duration
	b := Backoff{
		Interval: 100 * time.Millisecond,
		Jitter:   50 * time.Millisecond,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	r := b.Start()
	for i := 0; i < 20; i++ {
		require.NoError(t, r.Next(context.Background()))
	}
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
	assert.Equal(t, 21, r.Attempts())
}

func TestBackoff_DefaultInterval(t *testing.T) {
	var slept time.Duration
	r := Backoff{Sleep: func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}}.Start()

	require.NoError(t, r.Next(context.Background()))
	assert.Equal(t, DefaultInterval, slept)
	assert.Equal(t, DefaultInterval, DefaultBackoff().Interval)
}
