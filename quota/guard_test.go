package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// memStore is an in-memory Store with per-account mutual exclusion,
// mirroring the locking contract of the database-backed store.
type memStore struct {
	mu       sync.Mutex
	accounts map[uint]Account
	records  map[uint][]time.Time
	nextID   uint
	locks    map[uint]*sync.Mutex
}

func newMemStore(accounts ...Account) *memStore {
	s := &memStore{
		accounts: map[uint]Account{},
		records:  map[uint][]time.Time{},
		locks:    map[uint]*sync.Mutex{},
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memStore) GetAccount(_ context.Context, id uint) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (s *memStore) CountInRange(_ context.Context, accountID uint, start, end time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.records[accountID] {
		if !t.Before(start) && t.Before(end) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) InsertRecord(_ context.Context, accountID uint, _ Metadata, at time.Time) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[accountID] = append(s.records[accountID], at)
	s.nextID++
	return s.nextID, nil
}

func (s *memStore) Atomically(_ context.Context, accountID uint, fn func(Store) error) error {
	s.mu.Lock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	s.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(s)
}

func (s *memStore) setLimit(id uint, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	a.MonthlyLimit = limit
	s.accounts[id] = a
}

func (s *memStore) seed(accountID uint, at time.Time, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.records[accountID] = append(s.records[accountID], at)
	}
}

func (s *memStore) recordCount(accountID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[accountID])
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestMonthBoundsSameMonth(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	a := time.Date(2026, time.August, 1, 0, 0, 0, 0, loc)
	b := time.Date(2026, time.August, 31, 23, 59, 59, 999999999, loc)

	sa, ea := MonthBounds(a)
	sb, eb := MonthBounds(b)
	assert.True(t, sa.Equal(sb))
	assert.True(t, ea.Equal(eb))
	assert.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, loc), sa)
	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, loc), ea)
}

func TestMonthBoundsAdjacentMonths(t *testing.T) {
	july := time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC)
	august := time.Date(2026, time.August, 2, 8, 30, 0, 0, time.UTC)

	_, endJuly := MonthBounds(july)
	startAugust, _ := MonthBounds(august)
	assert.True(t, endJuly.Equal(startAugust))
}

func TestMonthBoundsYearRollover(t *testing.T) {
	dec := time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)
	start, end := MonthBounds(dec)
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestRecordAtMonthEndCountsAgainstNextMonth(t *testing.T) {
	store := newMemStore(Account{ID: 1, MonthlyLimit: 1})
	july := time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)
	_, endJuly := MonthBounds(july)

	// A record stamped exactly at the month end belongs to August.
	store.seed(1, endJuly, 1)

	guard := NewGuardWithClock(store, fixedClock(july))
	adm, err := guard.TryRecordUpload(context.Background(), 1, Metadata{StoredName: "a.png"})
	assert.NoError(t, err)
	assert.NotNil(t, adm)

	// August already holds the boundary record, so its single slot is taken.
	augustGuard := NewGuardWithClock(store, fixedClock(endJuly.Add(time.Hour)))
	_, err = augustGuard.TryRecordUpload(context.Background(), 1, Metadata{StoredName: "b.png"})
	var exceeded *QuotaExceededError
	assert.ErrorAs(t, err, &exceeded)
}

func TestTryRecordUploadLimitSequence(t *testing.T) {
	store := newMemStore(Account{ID: 7, MonthlyLimit: 2})
	now := time.Date(2026, time.August, 20, 10, 0, 0, 0, time.UTC)
	guard := NewGuardWithClock(store, fixedClock(now))

	first, err := guard.TryRecordUpload(context.Background(), 7, Metadata{StoredName: "1.jpg", OriginalName: "cat.jpg"})
	assert.NoError(t, err)
	assert.Equal(t, 1, first.Used)
	assert.Equal(t, 2, first.Limit)
	assert.True(t, first.CreatedAt.Equal(now))

	second, err := guard.TryRecordUpload(context.Background(), 7, Metadata{StoredName: "2.jpg"})
	assert.NoError(t, err)
	assert.Equal(t, 2, second.Used)

	_, err = guard.TryRecordUpload(context.Background(), 7, Metadata{StoredName: "3.jpg"})
	var exceeded *QuotaExceededError
	assert.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 2, exceeded.Limit)
	assert.Equal(t, 2, store.recordCount(7))
}

func TestTryRecordUploadAccountNotFound(t *testing.T) {
	store := newMemStore()
	guard := NewGuard(store)

	adm, err := guard.TryRecordUpload(context.Background(), 42, Metadata{StoredName: "x.png"})
	assert.Nil(t, adm)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, 0, store.recordCount(42))
}

func TestLimitRaisedMidMonth(t *testing.T) {
	store := newMemStore(Account{ID: 3, MonthlyLimit: 5})
	now := time.Date(2026, time.August, 15, 9, 0, 0, 0, time.UTC)
	store.seed(3, now.Add(-24*time.Hour), 5)
	guard := NewGuardWithClock(store, fixedClock(now))

	_, err := guard.TryRecordUpload(context.Background(), 3, Metadata{StoredName: "a.png"})
	var exceeded *QuotaExceededError
	assert.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 5, exceeded.Limit)

	store.setLimit(3, 10)
	adm, err := guard.TryRecordUpload(context.Background(), 3, Metadata{StoredName: "b.png"})
	assert.NoError(t, err)
	assert.Equal(t, 6, adm.Used)
	assert.Equal(t, 10, adm.Limit)
}

func TestNewMonthResetsCount(t *testing.T) {
	store := newMemStore(Account{ID: 9, MonthlyLimit: 1})
	july := time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC)
	store.seed(9, july, 1)

	_, err := NewGuardWithClock(store, fixedClock(july)).
		TryRecordUpload(context.Background(), 9, Metadata{StoredName: "a.png"})
	var exceeded *QuotaExceededError
	assert.ErrorAs(t, err, &exceeded)

	august := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	adm, err := NewGuardWithClock(store, fixedClock(august)).
		TryRecordUpload(context.Background(), 9, Metadata{StoredName: "b.png"})
	assert.NoError(t, err)
	assert.Equal(t, 1, adm.Used)
}

func TestConcurrentAdmissionsSingleSlot(t *testing.T) {
	store := newMemStore(Account{ID: 5, MonthlyLimit: 1})
	guard := NewGuard(store)

	const attempts = 16
	var wg sync.WaitGroup
	var admitted, rejected int64
	var countMu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.TryRecordUpload(context.Background(), 5, Metadata{StoredName: "c.png"})
			countMu.Lock()
			defer countMu.Unlock()
			var exceeded *QuotaExceededError
			switch {
			case err == nil:
				admitted++
			case errors.As(err, &exceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), admitted)
	assert.Equal(t, int64(attempts-1), rejected)
	assert.Equal(t, 1, store.recordCount(5))
}

func TestConcurrentAdmissionsAtLimitBoundary(t *testing.T) {
	const limit = 25
	const attempts = 2 * limit

	store := newMemStore(Account{ID: 6, MonthlyLimit: limit})
	guard := NewGuard(store)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.TryRecordUpload(context.Background(), 6, Metadata{StoredName: "d.png"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var admitted, rejected int
	for err := range results {
		var exceeded *QuotaExceededError
		if err == nil {
			admitted++
		} else if errors.As(err, &exceeded) {
			rejected++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, limit, admitted)
	assert.Equal(t, limit, rejected)
	assert.Equal(t, limit, store.recordCount(6))
}

func TestCurrentUsage(t *testing.T) {
	store := newMemStore(Account{ID: 2, MonthlyLimit: 30})
	now := time.Date(2026, time.August, 10, 15, 0, 0, 0, time.UTC)
	store.seed(2, now.Add(-time.Hour), 12)
	// Records from last month do not count.
	store.seed(2, now.AddDate(0, -1, 0), 4)

	guard := NewGuardWithClock(store, fixedClock(now))
	usage, err := guard.CurrentUsage(context.Background(), 2)
	assert.NoError(t, err)
	assert.Equal(t, 12, usage.Used)
	assert.Equal(t, 30, usage.Limit)
	assert.Equal(t, 18, usage.Remaining)

	start, end := MonthBounds(now)
	assert.True(t, usage.PeriodStart.Equal(start))
	assert.True(t, usage.PeriodEnd.Equal(end))
}

func TestCurrentUsageUnknownAccount(t *testing.T) {
	guard := NewGuard(newMemStore())
	_, err := guard.CurrentUsage(context.Background(), 1)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
