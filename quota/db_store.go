package quota

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harukit/monpix/models"
)

// DBStore implements Store against the users and uploads tables.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore wraps a gorm connection (or transaction) as a Store.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) GetAccount(ctx context.Context, id uint) (Account, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return Account{ID: user.ID, MonthlyLimit: user.MonthlyLimit}, nil
}

func (s *DBStore) CountInRange(ctx context.Context, accountID uint, start, end time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Upload{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", accountID, start, end).
		Count(&n).Error
	return n, err
}

func (s *DBStore) InsertRecord(ctx context.Context, accountID uint, meta Metadata, at time.Time) (uint, error) {
	rec := models.Upload{
		UserID:       accountID,
		StoredName:   meta.StoredName,
		OriginalName: meta.OriginalName,
		CreatedAt:    at,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// Atomically runs fn inside a transaction holding an exclusive lock on the
// account row, so concurrent admissions for one account serialize while
// other accounts proceed untouched. Returning an error from fn rolls the
// whole unit back.
func (s *DBStore) Atomically(ctx context.Context, accountID uint, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		return fn(&DBStore{db: tx})
	})
}
