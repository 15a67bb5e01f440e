package quota

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAccountNotFound is returned when an admission is attempted for an
// account id that does not exist. Not retryable.
var ErrAccountNotFound = errors.New("account not found")

// QuotaExceededError is the expected negative outcome of an admission
// attempt. It carries the ceiling that was in effect so callers can render
// a useful message.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly upload limit of %d reached", e.Limit)
}

// Account is the slice of a stored user the guard needs for its decision.
type Account struct {
	ID           uint
	MonthlyLimit int
}

// Metadata carries the artifact names persisted with an admitted upload.
type Metadata struct {
	StoredName   string
	OriginalName string
}

// Admission describes an accepted upload.
type Admission struct {
	RecordID  uint
	CreatedAt time.Time
	Limit     int
	// Used counts this month's uploads including the one just admitted.
	Used int
}

// Usage reports an account's consumption for the month containing the
// guard's current instant.
type Usage struct {
	Used        int
	Limit       int
	Remaining   int
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Store is the persistence contract the guard runs against.
//
// Atomically must provide mutual exclusion per account: while fn runs, no
// other admission for the same account may observe or produce counts.
// The database-backed implementation holds a row lock inside a
// transaction; test stores use a per-account mutex. Operations on other
// accounts are fully independent.
type Store interface {
	GetAccount(ctx context.Context, id uint) (Account, error)
	CountInRange(ctx context.Context, accountID uint, start, end time.Time) (int64, error)
	InsertRecord(ctx context.Context, accountID uint, meta Metadata, at time.Time) (uint, error)
	Atomically(ctx context.Context, accountID uint, fn func(Store) error) error
}

// Guard decides admission for new uploads against per-account monthly
// ceilings and records admitted uploads. It is safe for concurrent use.
type Guard struct {
	store Store
	now   func() time.Time
}

// NewGuard creates a guard over the given store using the wall clock.
func NewGuard(store Store) *Guard {
	return &Guard{store: store, now: time.Now}
}

// NewGuardWithClock allows tests to pin the reference instant.
func NewGuardWithClock(store Store, now func() time.Time) *Guard {
	return &Guard{store: store, now: now}
}

// MonthBounds returns the half-open interval [start, end) covering the
// calendar month containing ref, in ref's location. An instant exactly at
// end belongs to the next month. For any two instants within one month
// the bounds are identical, and the end of a month equals the start of
// the following one.
func MonthBounds(ref time.Time) (start, end time.Time) {
	start = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	end = start.AddDate(0, 1, 0)
	return start, end
}

// TryRecordUpload admits at most MonthlyLimit uploads per account per
// calendar month. On admission it persists one immutable record stamped
// with the same instant used for the month computation; the reference
// always comes from the guard's clock so a caller can never shift a
// record into a different month.
//
// Returns ErrAccountNotFound for unknown accounts, *QuotaExceededError
// when the ceiling is reached (no side effect), or the store's error on
// unexpected failure (in which case the whole unit is rolled back).
func (g *Guard) TryRecordUpload(ctx context.Context, accountID uint, meta Metadata) (*Admission, error) {
	ref := g.now()
	var adm *Admission

	err := g.store.Atomically(ctx, accountID, func(s Store) error {
		acct, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		start, end := MonthBounds(ref)
		used, err := s.CountInRange(ctx, accountID, start, end)
		if err != nil {
			return fmt.Errorf("count uploads: %w", err)
		}
		if used >= int64(acct.MonthlyLimit) {
			return &QuotaExceededError{Limit: acct.MonthlyLimit}
		}

		id, err := s.InsertRecord(ctx, accountID, meta, ref)
		if err != nil {
			return fmt.Errorf("insert upload record: %w", err)
		}

		adm = &Admission{
			RecordID:  id,
			CreatedAt: ref,
			Limit:     acct.MonthlyLimit,
			Used:      int(used) + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adm, nil
}

// CurrentUsage reports month-to-date consumption without admitting
// anything. It takes no lock; the answer is advisory and may be stale by
// the time the caller acts on it.
func (g *Guard) CurrentUsage(ctx context.Context, accountID uint) (*Usage, error) {
	acct, err := g.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	start, end := MonthBounds(g.now())
	used, err := g.store.CountInRange(ctx, accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}

	remaining := acct.MonthlyLimit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return &Usage{
		Used:        int(used),
		Limit:       acct.MonthlyLimit,
		Remaining:   remaining,
		PeriodStart: start,
		PeriodEnd:   end,
	}, nil
}
