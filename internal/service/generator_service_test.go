package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"go.uber.org/zap"

	"wifiticket/guestpass/internal/clock"
	"wifiticket/guestpass/internal/repository"
)

var (
	guestIDPattern  = regexp.MustCompile(`^TBKG-[A-Z]{2}[0-9]{2}$`)
	passwordPattern = regexp.MustCompile(`^[a-z0-9]{6}$`)
)

func defaultOptions() GeneratorOptions {
	return GeneratorOptions{
		Prefix:           "TBKG",
		SSID:             "TBKK-Guest",
		FirstName:        "Guest",
		ValidityDays:     7,
		PasswordLength:   6,
		PasswordAlphabet: "abcdefghijklmnopqrstuvwxyz0123456789",
		Token: TokenSpec{
			Letters:     "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
			LetterCount: 2,
			Digits:      "0123456789",
			DigitCount:  2,
		},
	}
}

func newGenerator(history repository.HistoryStore, opts GeneratorOptions, rnd RandSource) GeneratorService {
	return NewGeneratorService(history, repository.NewMemoryLocker(), opts, rnd, zap.NewNop())
}

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := clock.NowFunc
	clock.NowFunc = func() time.Time { return at }
	t.Cleanup(func() { clock.NowFunc = prev })
}

func seeded() RandSource {
	return rand.New(rand.NewPCG(1, 2))
}

func TestGenerateBatchShape(t *testing.T) {
	fixClock(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newGenerator(repository.NewMemoryHistoryStore(), defaultOptions(), seeded())

	batch, err := svc.GenerateBatch(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, batch.Records, 20)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", batch.ID.String())
	assert.True(t, batch.HistoryRecorded())
	assert.NoError(t, batch.HistoryReadErr)

	ids := map[string]struct{}{}
	passwords := map[string]struct{}{}
	for _, r := range batch.Records {
		assert.Regexp(t, guestIDPattern, r.GuestID)
		assert.Regexp(t, passwordPattern, r.Password)
		assert.Equal(t, "TBKG-"+r.GuestLastName, r.GuestID)
		assert.Equal(t, "Guest", r.GuestFirstName)
		assert.Equal(t, "TBKK-Guest", r.SSID)
		assert.Equal(t, "08/03/24", r.Expiration)
		assert.Empty(t, r.GuestEmail)
		assert.Empty(t, r.SponsorName)
		ids[r.GuestID] = struct{}{}
		passwords[r.Password] = struct{}{}
	}
	assert.Len(t, ids, 20, "identifiers must be unique within a batch")
	assert.Len(t, passwords, 20, "passwords must be unique within a batch")
}

func TestGenerateBatchUniqueAcrossRuns(t *testing.T) {
	store := repository.NewMemoryHistoryStore()
	svc := newGenerator(store, defaultOptions(), seeded())
	ctx := context.Background()

	first, err := svc.GenerateBatch(ctx, 20)
	require.NoError(t, err)
	second, err := svc.GenerateBatch(ctx, 20)
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for _, id := range append(first.GuestIDs(), second.GuestIDs()...) {
		_, dup := seen[id]
		require.False(t, dup, "identifier %s re-issued", id)
		seen[id] = struct{}{}
	}

	history, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 40)
}

func TestGenerateBatchGrowsHistoryByCount(t *testing.T) {
	store := repository.NewMemoryHistoryStore("TBKG-AA00", "TBKG-BB11", "TBKG-CC22")
	svc := newGenerator(store, defaultOptions(), seeded())

	batch, err := svc.GenerateBatch(context.Background(), 5)
	require.NoError(t, err)

	history, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 8)
	assert.Subset(t, history, batch.GuestIDs())
	assert.Subset(t, history, []string{"TBKG-AA00", "TBKG-BB11", "TBKG-CC22"})
}

func TestGenerateBatchMissingHistory(t *testing.T) {
	store := repository.NewMemoryHistoryStore()
	svc := newGenerator(store, defaultOptions(), seeded())

	batch, err := svc.GenerateBatch(context.Background(), 4)
	require.NoError(t, err)
	assert.NoError(t, batch.HistoryReadErr)

	history, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, batch.GuestIDs(), history)
}

func TestGenerateBatchExpirationRollover(t *testing.T) {
	tests := []struct {
		issued time.Time
		want   string
	}{
		{time.Date(2024, 1, 28, 12, 0, 0, 0, time.UTC), "04/02/24"},
		{time.Date(2024, 12, 28, 12, 0, 0, 0, time.UTC), "04/01/25"},
		{time.Date(2024, 2, 25, 12, 0, 0, 0, time.UTC), "03/03/24"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			fixClock(t, tt.issued)
			svc := newGenerator(repository.NewMemoryHistoryStore(), defaultOptions(), seeded())

			batch, err := svc.GenerateBatch(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, batch.Records[0].Expiration)
			assert.Equal(t, tt.issued.AddDate(0, 0, 7), batch.Records[0].ExpiresAt)
		})
	}
}

func tinyOptions() GeneratorOptions {
	opts := defaultOptions()
	opts.Token = TokenSpec{Letters: "A", LetterCount: 1, Digits: "01", DigitCount: 1}
	opts.MaxIdentifierAttempts = 50
	return opts
}

func TestGenerateBatchPoolExhausted(t *testing.T) {
	store := repository.NewMemoryHistoryStore("TBKG-A0", "TBKG-A1")
	svc := newGenerator(store, tinyOptions(), seeded())

	batch, err := svc.GenerateBatch(context.Background(), 1)
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, ErrPoolExhausted)

	history, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"TBKG-A0", "TBKG-A1"}, history)
}

func TestGenerateBatchLargerThanPool(t *testing.T) {
	store := repository.NewMemoryHistoryStore()
	svc := newGenerator(store, tinyOptions(), seeded())

	_, err := svc.GenerateBatch(context.Background(), 3)
	assert.ErrorIs(t, err, ErrPoolExhausted)

	// no partial batch is recorded
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, repository.ErrHistoryNotFound)
}

func TestGenerateBatchFillsLastSlots(t *testing.T) {
	store := repository.NewMemoryHistoryStore("TBKG-A0")
	svc := newGenerator(store, tinyOptions(), seeded())

	batch, err := svc.GenerateBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"TBKG-A1"}, batch.GuestIDs())
}

func TestGenerateBatchPasswordExhausted(t *testing.T) {
	opts := defaultOptions()
	opts.PasswordAlphabet = "a"
	opts.PasswordLength = 1
	opts.MaxPasswordAttempts = 10
	svc := newGenerator(repository.NewMemoryHistoryStore(), opts, seeded())

	_, err := svc.GenerateBatch(context.Background(), 2)
	assert.ErrorIs(t, err, ErrPasswordExhausted)
}

func TestGenerateBatchInvalidCount(t *testing.T) {
	store := new(MockHistoryStore)
	svc := newGenerator(store, defaultOptions(), seeded())

	for _, n := range []int{0, -1} {
		_, err := svc.GenerateBatch(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidCount)
	}
	store.AssertNotCalled(t, "Load", mock.Anything)
}

func TestGenerateBatchUnreadableHistory(t *testing.T) {
	store := new(MockHistoryStore)
	store.On("Load", mock.Anything).Return(nil, errors.New("unexpected end of JSON input"))
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := newGenerator(store, defaultOptions(), seeded())

	batch, err := svc.GenerateBatch(context.Background(), 3)
	require.NoError(t, err)
	assert.ErrorIs(t, batch.HistoryReadErr, ErrHistoryRead)
	assert.True(t, batch.HistoryRecorded())

	saved := store.Calls[1].Arguments.Get(1).([]string)
	assert.ElementsMatch(t, batch.GuestIDs(), saved)
	store.AssertExpectations(t)
}

func TestGenerateBatchHistoryWriteFailure(t *testing.T) {
	store := new(MockHistoryStore)
	store.On("Load", mock.Anything).Return([]string{"TBKG-AA00"}, nil)
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	svc := newGenerator(store, defaultOptions(), seeded())

	batch, err := svc.GenerateBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)
	assert.False(t, batch.HistoryRecorded())
	assert.ErrorIs(t, batch.HistoryWriteErr, ErrHistoryWrite)

	issued := store.Calls[1].Arguments.Get(2).([]string)
	assert.Equal(t, batch.GuestIDs(), issued)
}

func TestGenerateBatchConcurrentCallsSerialize(t *testing.T) {
	store := repository.NewMemoryHistoryStore()
	svc := newGenerator(store, defaultOptions(), nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		batches [2]*Batch
		errs    [2]error
	)
	for i := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batches[i], errs[i] = svc.GenerateBatch(ctx, 20)
		}()
	}
	wg.Wait()

	seen := map[string]struct{}{}
	for i := range batches {
		require.NoError(t, errs[i])
		for _, id := range batches[i].GuestIDs() {
			seen[id] = struct{}{}
		}
	}
	assert.Len(t, seen, 40)

	history, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 40)
}

func newFileHistory(t *testing.T, path string) repository.HistoryStore {
	t.Helper()
	store, err := repository.NewFileHistoryStore(afs.New(), path)
	require.NoError(t, err)
	return store
}

func TestGenerateBatchFileHistoryAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "history.json")
	ctx := context.Background()

	first, err := newGenerator(newFileHistory(t, path), defaultOptions(), nil).GenerateBatch(ctx, 20)
	require.NoError(t, err)
	require.True(t, first.HistoryRecorded())

	// a fresh store stands in for the next run of the program
	second, err := newGenerator(newFileHistory(t, path), defaultOptions(), nil).GenerateBatch(ctx, 20)
	require.NoError(t, err)
	assert.NoError(t, second.HistoryReadErr)
	assert.True(t, second.HistoryLoaded())
	assert.True(t, second.HistoryRecorded())

	for _, id := range second.GuestIDs() {
		assert.NotContains(t, first.GuestIDs(), id)
	}
	history, err := newFileHistory(t, path).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 40)
}

func TestGenerateBatchSharedFileHistory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	path := filepath.Join(dir, "history.json")
	ctx := context.Background()

	// two independent stacks over one file, as a server and a CLI run would be
	svcs := []GeneratorService{
		NewGeneratorService(newFileHistory(t, path), repository.NewFileLocker(dir, 2*time.Millisecond),
			defaultOptions(), nil, zap.NewNop()),
		NewGeneratorService(newFileHistory(t, path), repository.NewFileLocker(dir, 2*time.Millisecond),
			defaultOptions(), nil, zap.NewNop()),
	}

	const rounds = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		issued  []string
		failure error
	)
	for i := range rounds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch, err := svcs[i%2].GenerateBatch(ctx, 20)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failure = err
				return
			}
			issued = append(issued, batch.GuestIDs()...)
		}()
	}
	wg.Wait()
	require.NoError(t, failure)

	seen := map[string]struct{}{}
	for _, id := range issued {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, rounds*20)

	history, err := newFileHistory(t, path).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, history, rounds*20)
}

// expiringLocker grants the lock but reports it gone on release.
type expiringLocker struct{}

func (expiringLocker) Lock(context.Context, string) (repository.Unlock, error) {
	return func(context.Context) error { return repository.ErrLockNotHeld }, nil
}

func TestGenerateBatchLockLost(t *testing.T) {
	store := repository.NewMemoryHistoryStore()
	svc := NewGeneratorService(store, expiringLocker{}, defaultOptions(), seeded(), zap.NewNop())

	batch, err := svc.GenerateBatch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, batch.Records, 5)
	assert.ErrorIs(t, batch.LockErr, ErrLockLost)
	assert.ErrorIs(t, batch.LockErr, repository.ErrLockNotHeld)
	assert.NoError(t, batch.HistoryWriteErr)
	assert.False(t, batch.HistoryRecorded())
}

func TestCapacityAndRemaining(t *testing.T) {
	store := repository.NewMemoryHistoryStore("TBKG-AB12", "TBKG-ZZ99", "HOTEL-AB12", "TBKG-abc", "TBKG-A1B2")
	svc := newGenerator(store, defaultOptions(), seeded())

	assert.Equal(t, 26*26*10*10, svc.Capacity())

	report, err := svc.Remaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Issued)
	assert.Equal(t, 67600-2, report.Remaining)

	empty := newGenerator(repository.NewMemoryHistoryStore(), defaultOptions(), seeded())
	report, err = empty.Remaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Capacity, report.Remaining)
}

func TestRemainingUnreadableHistory(t *testing.T) {
	store := new(MockHistoryStore)
	store.On("Load", mock.Anything).Return(nil, errors.New("permission denied"))
	svc := newGenerator(store, defaultOptions(), seeded())

	_, err := svc.Remaining(context.Background())
	assert.ErrorIs(t, err, ErrHistoryRead)
}

func TestTokenSpecSizeSaturates(t *testing.T) {
	spec := TokenSpec{Letters: "ABCDEFGHIJKLMNOPQRSTUVWXYZ", LetterCount: 40, Digits: "0123456789", DigitCount: 2}
	assert.Positive(t, spec.Size())
}

func TestRandomTokenUsesAlphabet(t *testing.T) {
	rnd := seeded()
	for range 100 {
		tok := randomToken(rnd, 6, "xyz")
		assert.Regexp(t, `^[xyz]{6}$`, tok)
	}
	assert.Empty(t, randomToken(rnd, 0, "xyz"))
}
