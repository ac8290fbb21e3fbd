package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"

	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

func newTestTracker(t *testing.T) (*QuotaTracker, sqlmock.Sqlmock, clockwork.FakeClock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC))
	return NewQuotaTracker(repositories.NewQuotaRepository(db), clock), mock, clock
}

func bucketRows(buckets ...*models.QuotaBucket) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "api_key_id", "window_kind", "current_count", "limit_value", "reset_at", "created_at",
	})
	for _, b := range buckets {
		rows.AddRow(b.ID, b.APIKeyID, b.WindowKind, b.CurrentCount, b.LimitValue, b.ResetAt, b.CreatedAt)
	}
	return rows
}

func TestQuotaUnlimitedWithoutBuckets(t *testing.T) {
	tracker, mock, _ := newTestTracker(t)

	mock.ExpectQuery("SELECT (.+) FROM quota_buckets WHERE api_key_id = ?").
		WithArgs("key_1").
		WillReturnRows(bucketRows())

	d := tracker.Check("key_1")
	if !d.Allowed || !d.Unlimited {
		t.Fatalf("expected unlimited admission, got %+v", d)
	}
}

func TestQuotaAdmitReportsTightestBucket(t *testing.T) {
	tracker, mock, clock := newTestTracker(t)
	future := clock.Now().Add(time.Hour).Unix()

	hourly := &models.QuotaBucket{ID: "qb_h", APIKeyID: "key_1", WindowKind: "hourly", CurrentCount: 3, LimitValue: 10, ResetAt: future}
	daily := &models.QuotaBucket{ID: "qb_d", APIKeyID: "key_1", WindowKind: "daily", CurrentCount: 95, LimitValue: 100, ResetAt: future + 3600}

	mock.ExpectQuery("SELECT (.+) FROM quota_buckets").
		WillReturnRows(bucketRows(hourly, daily))
	mock.ExpectExec("UPDATE quota_buckets SET current_count = current_count \\+ 1").
		WithArgs("qb_h").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE quota_buckets SET current_count = current_count \\+ 1").
		WithArgs("qb_d").
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := tracker.Check("key_1")
	if !d.Allowed {
		t.Fatalf("expected admission, got %+v", d)
	}
	// daily has 4 remaining after the increment, hourly has 6
	if d.Limit != 100 || d.Remaining != 4 {
		t.Errorf("expected tightest bucket 100/4, got %d/%d", d.Limit, d.Remaining)
	}
	if d.ResetAt != future+3600 {
		t.Errorf("reset must come from the tightest bucket, got %d", d.ResetAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestQuotaRejectFullBucket(t *testing.T) {
	tracker, mock, clock := newTestTracker(t)
	resetAt := clock.Now().Add(20 * time.Minute).Unix()

	full := &models.QuotaBucket{ID: "qb_h", APIKeyID: "key_1", WindowKind: "hourly", CurrentCount: 10, LimitValue: 10, ResetAt: resetAt}
	mock.ExpectQuery("SELECT (.+) FROM quota_buckets").
		WillReturnRows(bucketRows(full))

	d := tracker.Check("key_1")
	if d.Allowed {
		t.Fatal("expected rejection for full bucket")
	}
	if d.Remaining != 0 || d.Limit != 10 {
		t.Errorf("expected 10/0, got %d/%d", d.Limit, d.Remaining)
	}
	if d.RetryAfter != 20*60 {
		t.Errorf("expected RetryAfter %d, got %d", 20*60, d.RetryAfter)
	}
	// rejection happens before any increment
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected writes: %v", err)
	}
}

func TestQuotaSmallestLimitWinsWhenSeveralFull(t *testing.T) {
	tracker, mock, clock := newTestTracker(t)
	future := clock.Now().Add(time.Hour).Unix()

	hourly := &models.QuotaBucket{ID: "qb_h", WindowKind: "hourly", CurrentCount: 10, LimitValue: 10, ResetAt: future}
	daily := &models.QuotaBucket{ID: "qb_d", WindowKind: "daily", CurrentCount: 100, LimitValue: 100, ResetAt: future + 3600}

	mock.ExpectQuery("SELECT (.+) FROM quota_buckets").
		WillReturnRows(bucketRows(daily, hourly))

	d := tracker.Check("key_1")
	if d.Allowed {
		t.Fatal("expected rejection")
	}
	if d.Limit != 10 {
		t.Errorf("rejection must report the smallest-limit bucket, got limit %d", d.Limit)
	}
}

func TestQuotaStaleWindowReset(t *testing.T) {
	tracker, mock, clock := newTestTracker(t)
	now := clock.Now()

	// window expired a minute ago and the bucket is full; the reset must
	// run before admission so the request goes through
	stale := &models.QuotaBucket{ID: "qb_h", WindowKind: "hourly", CurrentCount: 10, LimitValue: 10, ResetAt: now.Unix() - 60}
	nextReset := models.NextWindowBoundary("hourly", now).Unix()

	mock.ExpectQuery("SELECT (.+) FROM quota_buckets").
		WillReturnRows(bucketRows(stale))
	mock.ExpectExec("UPDATE quota_buckets SET current_count = 0, reset_at = \\?").
		WithArgs(nextReset, "qb_h", now.Unix()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE quota_buckets SET current_count = current_count \\+ 1").
		WithArgs("qb_h").
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := tracker.Check("key_1")
	if !d.Allowed {
		t.Fatalf("expected admission after window reset, got %+v", d)
	}
	if d.ResetAt != nextReset {
		t.Errorf("expected reset_at %d, got %d", nextReset, d.ResetAt)
	}
	if d.Remaining != 9 {
		t.Errorf("expected 9 remaining in the fresh window, got %d", d.Remaining)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestQuotaFailsOpenOnStoreError(t *testing.T) {
	tracker, mock, _ := newTestTracker(t)

	mock.ExpectQuery("SELECT (.+) FROM quota_buckets").
		WillReturnError(fmt.Errorf("database is locked"))

	d := tracker.Check("key_1")
	if !d.Allowed || !d.FailedOpen {
		t.Fatalf("expected fail-open admission, got %+v", d)
	}
}

func TestQuotaLostRaceRollsBack(t *testing.T) {
	tracker, mock, clock := newTestTracker(t)
	future := clock.Now().Add(time.Hour).Unix()

	hourly := &models.QuotaBucket{ID: "qb_h", WindowKind: "hourly", CurrentCount: 5, LimitValue: 10, ResetAt: future}
	daily := &models.QuotaBucket{ID: "qb_d", WindowKind: "daily", CurrentCount: 99, LimitValue: 100, ResetAt: future}

	mock.ExpectQuery("SELECT (.+) FROM quota_buckets").
		WillReturnRows(bucketRows(hourly, daily))
	mock.ExpectExec("UPDATE quota_buckets SET current_count = current_count \\+ 1").
		WithArgs("qb_h").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// concurrent request took the last daily slot between load and update
	mock.ExpectExec("UPDATE quota_buckets SET current_count = current_count \\+ 1").
		WithArgs("qb_d").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE quota_buckets SET current_count = current_count - 1").
		WithArgs("qb_h").
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := tracker.Check("key_1")
	if d.Allowed {
		t.Fatal("expected rejection after lost race")
	}
	if d.Limit != 100 {
		t.Errorf("rejection must report the contested bucket, got limit %d", d.Limit)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestProvisionBucketsSkipsZeroLimits(t *testing.T) {
	tracker, mock, _ := newTestTracker(t)

	mock.ExpectExec("INSERT INTO quota_buckets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO quota_buckets").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// monthly limit of zero means no monthly bucket
	if err := tracker.ProvisionBuckets("key_1", 1000, 10000, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected exactly two bucket inserts: %v", err)
	}
}

func TestNextWindowBoundary(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 45, 0, time.UTC)

	cases := []struct {
		kind string
		want time.Time
	}{
		{"hourly", time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC)},
		{"daily", time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
		{"monthly", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"bogus", time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			got := models.NextWindowBoundary(tc.kind, now)
			if !got.Equal(tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}

	// December rolls into January of the next year
	dec := time.Date(2026, 12, 20, 5, 0, 0, 0, time.UTC)
	got := models.NextWindowBoundary("monthly", dec)
	want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
