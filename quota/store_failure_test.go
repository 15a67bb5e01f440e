package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fnStore lets individual tests fail specific store operations.
type fnStore struct {
	getAccount   func(ctx context.Context, id uint) (Account, error)
	countInRange func(ctx context.Context, accountID uint, start, end time.Time) (int64, error)
	insertRecord func(ctx context.Context, accountID uint, meta Metadata, at time.Time) (uint, error)
}

func (s *fnStore) GetAccount(ctx context.Context, id uint) (Account, error) {
	return s.getAccount(ctx, id)
}

func (s *fnStore) CountInRange(ctx context.Context, accountID uint, start, end time.Time) (int64, error) {
	return s.countInRange(ctx, accountID, start, end)
}

func (s *fnStore) InsertRecord(ctx context.Context, accountID uint, meta Metadata, at time.Time) (uint, error) {
	return s.insertRecord(ctx, accountID, meta, at)
}

func (s *fnStore) Atomically(_ context.Context, _ uint, fn func(Store) error) error {
	return fn(s)
}

func TestCountFailurePropagatesWithoutInsert(t *testing.T) {
	countErr := errors.New("connection lost")
	inserted := false
	store := &fnStore{
		getAccount: func(context.Context, uint) (Account, error) {
			return Account{ID: 1, MonthlyLimit: 10}, nil
		},
		countInRange: func(context.Context, uint, time.Time, time.Time) (int64, error) {
			return 0, countErr
		},
		insertRecord: func(context.Context, uint, Metadata, time.Time) (uint, error) {
			inserted = true
			return 1, nil
		},
	}

	adm, err := NewGuard(store).TryRecordUpload(context.Background(), 1, Metadata{StoredName: "a.png"})
	assert.Nil(t, adm)
	assert.ErrorIs(t, err, countErr)
	assert.False(t, inserted)
}

func TestInsertFailurePropagates(t *testing.T) {
	insertErr := errors.New("table locked")
	store := &fnStore{
		getAccount: func(context.Context, uint) (Account, error) {
			return Account{ID: 1, MonthlyLimit: 10}, nil
		},
		countInRange: func(context.Context, uint, time.Time, time.Time) (int64, error) {
			return 3, nil
		},
		insertRecord: func(context.Context, uint, Metadata, time.Time) (uint, error) {
			return 0, insertErr
		},
	}

	adm, err := NewGuard(store).TryRecordUpload(context.Background(), 1, Metadata{StoredName: "a.png"})
	assert.Nil(t, adm)
	assert.ErrorIs(t, err, insertErr)

	var exceeded *QuotaExceededError
	assert.False(t, errors.As(err, &exceeded))
}

func TestGuardStampsBoundsAndRecordFromSameInstant(t *testing.T) {
	ref := time.Date(2026, time.August, 31, 23, 59, 59, 0, time.UTC)
	var countedStart, countedEnd, stamped time.Time
	store := &fnStore{
		getAccount: func(context.Context, uint) (Account, error) {
			return Account{ID: 1, MonthlyLimit: 10}, nil
		},
		countInRange: func(_ context.Context, _ uint, start, end time.Time) (int64, error) {
			countedStart, countedEnd = start, end
			return 0, nil
		},
		insertRecord: func(_ context.Context, _ uint, _ Metadata, at time.Time) (uint, error) {
			stamped = at
			return 1, nil
		},
	}

	guard := NewGuardWithClock(store, func() time.Time { return ref })
	adm, err := guard.TryRecordUpload(context.Background(), 1, Metadata{StoredName: "a.png"})
	assert.NoError(t, err)
	assert.True(t, stamped.Equal(ref))
	assert.True(t, adm.CreatedAt.Equal(ref))

	wantStart, wantEnd := MonthBounds(ref)
	assert.True(t, countedStart.Equal(wantStart))
	assert.True(t, countedEnd.Equal(wantEnd))
	// The stamped instant always falls inside the window it was counted against.
	assert.True(t, !stamped.Before(countedStart) && stamped.Before(countedEnd))
}
