package repositories

import (
	"database/sql"
	"time"

	"iotgate/internal/platform/models"

	"github.com/google/uuid"
)

type QuotaRepository struct {
	db *sql.DB
}

func NewQuotaRepository(db *sql.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

func (r *QuotaRepository) Create(bucket *models.QuotaBucket) error {
	if bucket.ID == "" {
		bucket.ID = "qb_" + uuid.New().String()
	}
	bucket.CreatedAt = time.Now().Unix()

	_, err := r.db.Exec(`
		INSERT INTO quota_buckets (id, api_key_id, window_kind, current_count, limit_value, reset_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, bucket.ID, bucket.APIKeyID, bucket.WindowKind, bucket.CurrentCount, bucket.LimitValue, bucket.ResetAt, bucket.CreatedAt)
	return err
}

func (r *QuotaRepository) ListByKey(apiKeyID string) ([]*models.QuotaBucket, error) {
	rows, err := r.db.Query(`
		SELECT id, api_key_id, window_kind, current_count, limit_value, reset_at, created_at
		FROM quota_buckets WHERE api_key_id = ?
	`, apiKeyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []*models.QuotaBucket
	for rows.Next() {
		b := &models.QuotaBucket{}
		if err := rows.Scan(&b.ID, &b.APIKeyID, &b.WindowKind, &b.CurrentCount, &b.LimitValue, &b.ResetAt, &b.CreatedAt); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// ResetIfStale zeroes the bucket and advances its window, guarded so that
// concurrent resets of the same stale bucket are idempotent: the WHERE
// clause only matches while reset_at is still in the past.
func (r *QuotaRepository) ResetIfStale(bucketID string, now, nextReset int64) error {
	_, err := r.db.Exec(`
		UPDATE quota_buckets SET current_count = 0, reset_at = ?
		WHERE id = ? AND reset_at <= ?
	`, nextReset, bucketID, now)
	return err
}

// IncrementIfUnder performs the admission increment as a single conditional
// statement, so two concurrent requests can never both consume the last
// slot. Returns false when the bucket was already full.
func (r *QuotaRepository) IncrementIfUnder(bucketID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE quota_buckets SET current_count = current_count + 1
		WHERE id = ? AND current_count < limit_value
	`, bucketID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Decrement undoes one admission increment, used to roll back when a later
// bucket in the same admission turns out to be full.
func (r *QuotaRepository) Decrement(bucketID string) error {
	_, err := r.db.Exec(`
		UPDATE quota_buckets SET current_count = current_count - 1
		WHERE id = ? AND current_count > 0
	`, bucketID)
	return err
}

func (r *QuotaRepository) DeleteByKey(apiKeyID string) error {
	_, err := r.db.Exec(`DELETE FROM quota_buckets WHERE api_key_id = ?`, apiKeyID)
	return err
}
