package remote

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/codec"
	"github.com/SplayLobster/MemoApp2/internal/document"
	"github.com/SplayLobster/MemoApp2/internal/document/memory"
	"github.com/SplayLobster/MemoApp2/internal/lock"
	"github.com/SplayLobster/MemoApp2/internal/model"
	"github.com/SplayLobster/MemoApp2/internal/repository"
)

var testKey = document.Key{AppCode: "memo-app", DataName: "notes"}

func strPtr(s string) *string { return &s }

// recordingClient - обертка над хранилищем, записывающая вызовы и позволяющая подменить ошибки
type recordingClient struct {
	inner document.Client

	mu      sync.Mutex
	fetches int
	stores  []codec.Envelope

	fetchErr func(n int) error
	storeErr func(n int) error
}

func (c *recordingClient) Fetch(ctx context.Context, key document.Key) ([]byte, error) {
	c.mu.Lock()
	c.fetches++
	n := c.fetches
	c.mu.Unlock()
	if c.fetchErr != nil {
		if err := c.fetchErr(n); err != nil {
			return nil, err
		}
	}
	return c.inner.Fetch(ctx, key)
}

func (c *recordingClient) Store(ctx context.Context, key document.Key, data []byte) error {
	env, err := codec.Decode(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.stores = append(c.stores, env)
	n := len(c.stores)
	c.mu.Unlock()
	if c.storeErr != nil {
		if err := c.storeErr(n); err != nil {
			return err
		}
	}
	return c.inner.Store(ctx, key, data)
}

func (c *recordingClient) storeCalls() []codec.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]codec.Envelope(nil), c.stores...)
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func seed(t *testing.T, store document.Client, notes model.Collection, occ model.Occupancy) {
	t.Helper()
	data, err := codec.Encode(notes, occ)
	require.NoError(t, err)
	require.NoError(t, store.Store(context.Background(), testKey, data))
}

func newRepo(client document.Client, opts lock.Options) *Repository {
	if opts.Backoff.Sleep == nil {
		opts.Backoff.Sleep = noSleep
	}
	return New(client, testKey, opts, zap.NewNop().Sugar())
}

func classic(id, title, content string) model.Note {
	return model.Note{ID: id, Kind: model.KindClassic, Title: title, Content: content}
}

func TestLoad_MissingDocumentIsEmptyAndFree(t *testing.T) {
	repo := newRepo(memory.NewStore(), lock.Options{})

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Notes)
	assert.False(t, doc.Occupancy.Occupied)
}

func TestLoad_Malformed(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Store(context.Background(), testKey, []byte(`{"notes":[]}`)))
	repo := newRepo(store, lock.Options{})

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, repository.ErrLoadFailed)
	assert.ErrorIs(t, err, codec.ErrMalformedEnvelope)
}

func TestLoad_TransportErrorIsPreserved(t *testing.T) {
	client := &recordingClient{
		inner: memory.NewStore(),
		fetchErr: func(int) error {
			return document.Wrap("fetch", testKey, errors.New("connection refused"))
		},
	}
	repo := newRepo(client, lock.Options{})

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, repository.ErrLoadFailed)
	var te *document.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestLoad_Legacy(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Store(context.Background(), testKey,
		[]byte(`[{"id":7,"type":"classic","title":"old","content":"legacy"}]`)))
	repo := newRepo(store, lock.Options{})

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Notes, 1)
	assert.Equal(t, "7", doc.Notes[0].ID)
	assert.False(t, doc.Occupancy.Occupied)
}

func TestSave_Failure(t *testing.T) {
	client := &recordingClient{
		inner:    memory.NewStore(),
		storeErr: func(int) error { return errors.New("boom") },
	}
	repo := newRepo(client, lock.Options{})

	err := repo.Save(context.Background(), model.Collection{}, model.Occupancy{})
	assert.ErrorIs(t, err, repository.ErrSaveFailed)
}

// Документ со свободным флагом: claim с неизмененными заметками, затем release с результатом
func TestUpdate_StoreSequence(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{})
	client := &recordingClient{inner: store}
	repo := newRepo(client, lock.Options{})

	require.NoError(t, repo.Update(context.Background(), "1", model.Patch{Content: strPtr("y")}))

	calls := client.storeCalls()
	require.Len(t, calls, 2)

	assert.True(t, calls[0].Occupancy.Occupied)
	assert.Equal(t, model.Collection{classic("1", "A", "x")}, calls[0].Notes)

	assert.False(t, calls[1].Occupancy.Occupied)
	assert.Equal(t, model.Collection{classic("1", "A", "y")}, calls[1].Notes)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Collection{classic("1", "A", "y")}, doc.Notes)
	assert.False(t, doc.Occupancy.Occupied)
}

// Занятый документ: повторное чтение после паузы, ни одной записи пока флаг не освободится
func TestUpdate_WaitsForFlagBeforeStoring(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{Occupied: true})
	client := &recordingClient{inner: store}

	var sleeps []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		assert.Empty(t, client.storeCalls(), "no store while document is occupied")
		if len(sleeps) == 2 {
			// Другой клиент освобождает документ
			seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{})
		}
		return nil
	}
	repo := newRepo(client, lock.Options{Backoff: lock.Backoff{Interval: 500 * time.Millisecond, Sleep: sleep}})

	require.NoError(t, repo.Update(context.Background(), "1", model.Patch{Content: strPtr("y")}))

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sleeps)
	assert.Equal(t, 3, client.fetches)
	calls := client.storeCalls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Occupancy.Occupied)
	assert.False(t, calls[1].Occupancy.Occupied)
}

func TestUpdate_AppendOnMissingID(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{})
	repo := newRepo(store, lock.Options{})

	patch := model.ReplaceWith(model.Note{Kind: model.KindList, Title: "todo", Items: []model.Item{{Text: "milk"}}})
	require.NoError(t, repo.Update(context.Background(), "new-id", patch))

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Notes, 2)
	assert.Equal(t, "1", doc.Notes[0].ID)
	assert.Equal(t, "new-id", doc.Notes[1].ID)
	assert.Equal(t, model.KindList, doc.Notes[1].Kind)
	assert.Equal(t, []model.Item{{Text: "milk"}}, doc.Notes[1].Items)
}

func TestUpdate_OverlayExistingKeepsSingleNote(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x"), classic("2", "B", "z")}, model.Occupancy{})
	repo := newRepo(store, lock.Options{})

	require.NoError(t, repo.Update(context.Background(), "1", model.Patch{Title: strPtr("A2")}))
	require.NoError(t, repo.Update(context.Background(), "1", model.Patch{Title: strPtr("A3")}))

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Collection{classic("1", "A3", "x"), classic("2", "B", "z")}, doc.Notes)
}

func TestUpdate_FirstSaveCreatesDocument(t *testing.T) {
	store := memory.NewStore()
	repo := newRepo(store, lock.Options{})

	require.NoError(t, repo.Update(context.Background(), "1", model.Patch{Title: strPtr("first")}))

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Notes, 1)
	assert.Equal(t, "first", doc.Notes[0].Title)
}

func TestUpdate_LegacyDocumentIsRewrittenAsEnvelope(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Store(context.Background(), testKey,
		[]byte(`[{"id":"1","type":"classic","title":"A","content":"x"}]`)))
	repo := newRepo(store, lock.Options{})

	require.NoError(t, repo.Update(context.Background(), "1", model.Patch{Content: strPtr("y")}))

	data, err := store.Fetch(context.Background(), testKey)
	require.NoError(t, err)
	env, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, codec.FormatEnvelope, env.Format)
	assert.Equal(t, "y", env.Notes[0].Content)
}

func TestUpdate_RetriesExhaustedWithoutStore(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{}, model.Occupancy{Occupied: true})
	client := &recordingClient{inner: store}
	repo := newRepo(client, lock.Options{Backoff: lock.Backoff{MaxAttempts: 4}})

	err := repo.Update(context.Background(), "1", model.Patch{Title: strPtr("x")})
	assert.ErrorIs(t, err, lock.ErrRetriesExhausted)
	assert.Equal(t, 4, client.fetches)
	assert.Empty(t, client.storeCalls())
}

func TestUpdate_ContextCanceledDuringBackoff(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{}, model.Occupancy{Occupied: true})
	client := &recordingClient{inner: store}

	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	repo := newRepo(client, lock.Options{Backoff: lock.Backoff{Sleep: sleep}})

	err := repo.Update(ctx, "1", model.Patch{Title: strPtr("x")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.storeCalls())
}

func TestUpdate_LoadFailureFailsFast(t *testing.T) {
	client := &recordingClient{
		inner:    memory.NewStore(),
		fetchErr: func(int) error { return errors.New("timeout") },
	}
	repo := newRepo(client, lock.Options{})

	err := repo.Update(context.Background(), "1", model.Patch{Title: strPtr("x")})
	assert.ErrorIs(t, err, repository.ErrLoadFailed)
	assert.Equal(t, 1, client.fetches)
	assert.Empty(t, client.storeCalls())
}

func TestUpdate_ClaimFailure(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{})
	client := &recordingClient{
		inner:    store,
		storeErr: func(int) error { return errors.New("503") },
	}
	repo := newRepo(client, lock.Options{})

	err := repo.Update(context.Background(), "1", model.Patch{Content: strPtr("y")})
	assert.ErrorIs(t, err, repository.ErrClaimFailed)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, doc.Occupancy.Occupied)
	assert.Equal(t, "x", doc.Notes[0].Content)
}

func TestUpdate_ReleaseFailureLeavesDocumentOccupied(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{})
	client := &recordingClient{
		inner: store,
		storeErr: func(n int) error {
			if n == 2 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	repo := newRepo(client, lock.Options{})

	err := repo.Update(context.Background(), "1", model.Patch{Content: strPtr("y")})
	assert.ErrorIs(t, err, repository.ErrReleaseFailed)

	// Видимый побочный эффект только запись флага, содержимое не изменено
	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, doc.Occupancy.Occupied)
	assert.Equal(t, "x", doc.Notes[0].Content)
}

func TestUpdate_ReleaseRunsAfterCancel(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{}, model.Occupancy{})

	ctx, cancel := context.WithCancel(context.Background())
	client := &recordingClient{
		inner: store,
		storeErr: func(n int) error {
			if n == 2 {
				// Вызывающий отменяет операцию между claim и release
				cancel()
			}
			return nil
		},
	}
	repo := newRepo(client, lock.Options{})

	require.NoError(t, repo.Update(ctx, "1", model.Patch{Title: strPtr("x")}))

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, doc.Occupancy.Occupied)
	assert.Len(t, doc.Notes, 1)
}

func TestUpdate_ReclaimsStaleLease(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{
		Occupied:  true,
		Owner:     "crashed-client",
		ExpiresAt: now.Add(-time.Minute),
	})
	client := &recordingClient{inner: store}
	repo := newRepo(client, lock.Options{
		LeaseTTL: 30 * time.Second,
		Now:      func() time.Time { return now },
		NewOwner: func() string { return "me" },
	})

	require.NoError(t, repo.Update(context.Background(), "1", model.Patch{Content: strPtr("y")}))

	calls := client.storeCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "me", calls[0].Occupancy.Owner)
	assert.True(t, calls[0].Occupancy.ExpiresAt.Equal(now.Add(30*time.Second)))
	assert.Equal(t, model.Occupancy{}, calls[1].Occupancy)
	assert.Equal(t, "y", calls[1].Notes[0].Content)
}

func TestUpdate_LeaseLost(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{})

	client := &recordingClient{
		inner: store,
		fetchErr: func(n int) error {
			if n == 2 {
				// Пока мы держали аренду, ее перехватил другой клиент
				seed(t, store, model.Collection{classic("1", "A", "other")}, model.Occupancy{
					Occupied:  true,
					Owner:     "other",
					ExpiresAt: time.Now().Add(time.Minute),
				})
			}
			return nil
		},
	}
	repo := newRepo(client, lock.Options{LeaseTTL: time.Second})

	err := repo.Update(context.Background(), "1", model.Patch{Content: strPtr("y")})
	assert.ErrorIs(t, err, repository.ErrReleaseFailed)
	assert.ErrorIs(t, err, lock.ErrLeaseLost)
	assert.Len(t, client.storeCalls(), 1)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "other", doc.Occupancy.Owner)
	assert.Equal(t, "other", doc.Notes[0].Content)
}

func TestDelete(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x"), classic("2", "B", "y"), classic("3", "C", "z")}, model.Occupancy{})
	repo := newRepo(store, lock.Options{})

	require.NoError(t, repo.Delete(context.Background(), "2"))

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Collection{classic("1", "A", "x"), classic("3", "C", "z")}, doc.Notes)
	assert.False(t, doc.Occupancy.Occupied)
}

func TestDelete_MissingReleasesUnchanged(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{})
	client := &recordingClient{inner: store}
	repo := newRepo(client, lock.Options{})

	err := repo.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNoteNotFound)

	calls := client.storeCalls()
	require.Len(t, calls, 2)
	assert.False(t, calls[1].Occupancy.Occupied)
	assert.Equal(t, model.Collection{classic("1", "A", "x")}, calls[1].Notes)
}

func TestPatch_OverlaysExisting(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x"), classic("2", "B", "y")}, model.Occupancy{})
	repo := newRepo(store, lock.Options{})

	editing := true
	updated, err := repo.Patch(context.Background(), "2", model.Patch{Content: strPtr("z"), IsEditing: &editing})
	require.NoError(t, err)

	want := classic("2", "B", "z")
	want.IsEditing = true
	assert.Equal(t, want, updated)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Collection{classic("1", "A", "x"), want}, doc.Notes)
	assert.False(t, doc.Occupancy.Occupied)
}

func TestPatch_MissingIsNotAppended(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "x")}, model.Occupancy{})
	client := &recordingClient{inner: store}
	repo := newRepo(client, lock.Options{})

	editing := true
	_, err := repo.Patch(context.Background(), "gone", model.Patch{IsEditing: &editing})
	assert.ErrorIs(t, err, repository.ErrNoteNotFound)

	calls := client.storeCalls()
	require.Len(t, calls, 2)
	assert.False(t, calls[1].Occupancy.Occupied)
	assert.Equal(t, model.Collection{classic("1", "A", "x")}, calls[1].Notes)
}

func TestPatch_InvalidResultReleasesUnchanged(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, model.Collection{classic("1", "A", "")}, model.Occupancy{})
	client := &recordingClient{inner: store}
	repo := newRepo(client, lock.Options{})

	_, err := repo.Patch(context.Background(), "1", model.Patch{Title: strPtr("")})
	assert.EqualError(t, err, "note cannot be empty")

	calls := client.storeCalls()
	require.Len(t, calls, 2)
	assert.False(t, calls[1].Occupancy.Occupied)
	assert.Equal(t, model.Collection{classic("1", "A", "")}, calls[1].Notes)
}

func TestUpdate_EmptyID(t *testing.T) {
	repo := newRepo(memory.NewStore(), lock.Options{})

	assert.Error(t, repo.Update(context.Background(), "", model.Patch{}))
	assert.Error(t, repo.Delete(context.Background(), ""))
	_, err := repo.Patch(context.Background(), "", model.Patch{})
	assert.Error(t, err)
}

// gatedClient - клиент, который задерживает release, пока второй клиент не увидит занятый документ
type gatedClient struct {
	document.Client
	stores   atomic.Int32
	written  atomic.Int32
	beforeNo int32
	gate     <-chan struct{}
}

func (c *gatedClient) Store(ctx context.Context, key document.Key, data []byte) error {
	if c.stores.Add(1) == c.beforeNo {
		<-c.gate
	}
	err := c.Client.Store(ctx, key, data)
	c.written.Add(1)
	return err
}

// observingClient - клиент, сообщающий о первом чтении занятого документа
type observingClient struct {
	document.Client
	once     sync.Once
	occupied chan struct{}
}

func (c *observingClient) Fetch(ctx context.Context, key document.Key) ([]byte, error) {
	data, err := c.Client.Fetch(ctx, key)
	if err == nil {
		if env, decErr := codec.Decode(data); decErr == nil && env.Occupancy.Occupied {
			c.once.Do(func() { close(c.occupied) })
		}
	}
	return data, err
}

func TestUpdate_MutualExclusion(t *testing.T) {
	var (
		traceMu sync.Mutex
		trace   []bool
	)
	store := memory.NewStore(func(key document.Key, data []byte) {
		env, err := codec.Decode(data)
		if err != nil {
			return
		}
		traceMu.Lock()
		trace = append(trace, env.Occupancy.Occupied)
		traceMu.Unlock()
	})
	seed(t, store, model.Collection{}, model.Occupancy{})

	occupied := make(chan struct{})
	clientA := &gatedClient{Client: store, beforeNo: 2, gate: occupied}
	clientB := &observingClient{Client: store, occupied: occupied}

	realSleep := lock.Backoff{
		Interval:    time.Millisecond,
		MaxAttempts: 10000,
		Sleep: func(ctx context.Context, d time.Duration) error {
			time.Sleep(d)
			return ctx.Err()
		},
	}
	repoA := newRepo(clientA, lock.Options{})
	repoB := newRepo(clientB, lock.Options{Backoff: realSleep})

	errA := make(chan error, 1)
	go func() {
		errA <- repoA.Update(context.Background(), "a", model.Patch{Title: strPtr("from A")})
	}()

	// B стартует, когда A уже записал claim
	require.Eventually(t, func() bool { return clientA.written.Load() >= 1 }, time.Second, time.Millisecond)
	require.NoError(t, repoB.Update(context.Background(), "b", model.Patch{Title: strPtr("from B")}))
	require.NoError(t, <-errA)

	traceMu.Lock()
	defer traceMu.Unlock()
	// seed, claim A, release A, claim B, release B
	assert.Equal(t, []bool{false, true, false, true, false}, trace)

	doc, err := repoB.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Notes, 2)
	assert.Equal(t, "a", doc.Notes[0].ID)
	assert.Equal(t, "b", doc.Notes[1].ID)
}
