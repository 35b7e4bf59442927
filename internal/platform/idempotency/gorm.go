package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
)

// KeyRow is the idempotency_keys table.
type KeyRow struct {
	ID              string    `gorm:"primaryKey;size:64"`
	Key             string    `gorm:"column:idem_key;size:512;not null"`
	Fingerprint     string    `gorm:"size:64;not null"`
	Status          string    `gorm:"size:16;not null"`
	ResponseStatus  int       `gorm:"not null;default:0"`
	ResponseHeaders []byte    `gorm:"type:text"`
	ResponseBody    []byte    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
	ExpiresAt       time.Time `gorm:"not null;index"`
}

// TableName implements gorm's tabler.
func (KeyRow) TableName() string { return "idempotency_keys" }

func rowFromRecord(record Record) (KeyRow, error) {
	row := KeyRow{
		ID:             recordID(record.Key),
		Key:            record.Key,
		Fingerprint:    record.Fingerprint,
		Status:         string(record.Status),
		ResponseStatus: record.ResponseStatus,
		ResponseBody:   record.ResponseBody,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
		ExpiresAt:      record.ExpiresAt,
	}
	if len(record.ResponseHeaders) > 0 {
		headers, err := json.Marshal(record.ResponseHeaders)
		if err != nil {
			return KeyRow{}, fmt.Errorf("idempotency: encode headers: %w", err)
		}
		row.ResponseHeaders = headers
	}
	return row, nil
}

func (r KeyRow) record() (Record, error) {
	record := Record{
		Key:            r.Key,
		Fingerprint:    r.Fingerprint,
		Status:         Status(r.Status),
		ResponseStatus: r.ResponseStatus,
		ResponseBody:   r.ResponseBody,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		ExpiresAt:      r.ExpiresAt.UTC(),
	}
	if len(r.ResponseHeaders) > 0 {
		if err := json.Unmarshal(r.ResponseHeaders, &record.ResponseHeaders); err != nil {
			return Record{}, fmt.Errorf("idempotency: decode headers: %w", err)
		}
	}
	return record, nil
}

// GormStore keeps records in the relational database next to the orders.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Reserve implements Store. The row is locked while its state is inspected.
func (s *GormStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	var result Reservation
	err := database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		conn := database.Conn(ctx, s.db)
		var row KeyRow
		err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", recordID(key)).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record := newPendingRecord(key, fingerprint, now, ttl)
			fresh, err := rowFromRecord(record)
			if err != nil {
				return err
			}
			res := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh)
			if res.Error != nil {
				return database.WrapError("idempotency.reserve", res.Error)
			}
			if res.RowsAffected == 0 {
				// a concurrent request inserted the same key first
				result = Reservation{State: ReservationStatePending, Record: record}
				return nil
			}
			result = Reservation{State: ReservationStateNew, Record: record}
			return nil
		case err != nil:
			return database.WrapError("idempotency.reserve", err)
		}

		existing, err := row.record()
		if err != nil {
			return err
		}
		if existing.expired(now) {
			record := newPendingRecord(key, fingerprint, now, ttl)
			replacement, err := rowFromRecord(record)
			if err != nil {
				return err
			}
			if err := conn.Save(&replacement).Error; err != nil {
				return database.WrapError("idempotency.reserve", err)
			}
			result = Reservation{State: ReservationStateNew, Record: record}
			return nil
		}
		result, err = reservationFor(existing, fingerprint)
		return err
	})
	if err != nil {
		return Reservation{}, err
	}
	return result, nil
}

// SaveResponse implements Store.
func (s *GormStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	return database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		conn := database.Conn(ctx, s.db)
		var row KeyRow
		record := Record{Key: key, Fingerprint: fingerprint}
		err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", recordID(key)).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return database.WrapError("idempotency.save", err)
		default:
			if row.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			if record, err = row.record(); err != nil {
				return err
			}
		}
		updated, err := rowFromRecord(completeRecord(record, resp, now, ttl))
		if err != nil {
			return err
		}
		if err := conn.Save(&updated).Error; err != nil {
			return database.WrapError("idempotency.save", err)
		}
		return nil
	})
}

// Release implements Store.
func (s *GormStore) Release(ctx context.Context, key, fingerprint string) error {
	err := database.Conn(ctx, s.db).
		Where("id = ? AND fingerprint = ?", recordID(key), fingerprint).
		Delete(&KeyRow{}).Error
	return database.WrapError("idempotency.release", err)
}

// CleanupExpired implements Store. Deletes at most limit rows, oldest expiry first.
func (s *GormStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	conn := database.Conn(ctx, s.db)
	query := conn.Model(&KeyRow{}).Where("expires_at <= ?", now.UTC()).Order("expires_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	if err := query.Pluck("id", &ids).Error; err != nil {
		return 0, database.WrapError("idempotency.cleanup", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := conn.Where("id IN ?", ids).Delete(&KeyRow{})
	if res.Error != nil {
		return 0, database.WrapError("idempotency.cleanup", res.Error)
	}
	return int(res.RowsAffected), nil
}
