package gateway

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

// QuotaDecision is the outcome of one admission check. Limit, Remaining and
// ResetAt describe the most restrictive bucket and feed the rate-limit
// response headers; RetryAfter is only set on rejection.
type QuotaDecision struct {
	Allowed    bool
	Unlimited  bool
	Limit      int
	Remaining  int
	ResetAt    int64
	RetryAfter int64

	// FailedOpen marks an admission granted because the store was
	// unreachable, not because capacity was available.
	FailedOpen bool
}

// QuotaTracker enforces per-key fixed-window quotas. Each admission is an
// atomic conditional increment in the store, so concurrent requests from
// the same key cannot under-count. On store failure the tracker fails open:
// availability wins over strict enforcement.
type QuotaTracker struct {
	repo  *repositories.QuotaRepository
	clock clockwork.Clock
}

func NewQuotaTracker(repo *repositories.QuotaRepository, clock clockwork.Clock) *QuotaTracker {
	return &QuotaTracker{repo: repo, clock: clock}
}

func (t *QuotaTracker) Check(apiKeyID string) *QuotaDecision {
	now := t.clock.Now()

	buckets, err := t.repo.ListByKey(apiKeyID)
	if err != nil {
		log.Warn().Err(err).Str("api_key_id", apiKeyID).Msg("quota lookup failed, failing open")
		return &QuotaDecision{Allowed: true, FailedOpen: true}
	}

	// unlimited-tier key
	if len(buckets) == 0 {
		return &QuotaDecision{Allowed: true, Unlimited: true}
	}

	// zero stale windows before any bucket is evaluated
	for _, b := range buckets {
		if b.ResetAt <= now.Unix() {
			next := models.NextWindowBoundary(b.WindowKind, now)
			if err := t.repo.ResetIfStale(b.ID, now.Unix(), next.Unix()); err != nil {
				log.Warn().Err(err).Str("bucket_id", b.ID).Msg("quota window reset failed, failing open")
				return &QuotaDecision{Allowed: true, FailedOpen: true}
			}
			b.CurrentCount = 0
			b.ResetAt = next.Unix()
		}
	}

	// cheap pre-check on the loaded counts; the conditional increment
	// below remains the authoritative gate
	if full := fullestBucket(buckets); full != nil {
		return reject(full, now.Unix())
	}

	incremented := make([]*models.QuotaBucket, 0, len(buckets))
	for _, b := range buckets {
		ok, err := t.repo.IncrementIfUnder(b.ID)
		if err != nil {
			log.Warn().Err(err).Str("bucket_id", b.ID).Msg("quota increment failed, failing open")
			return &QuotaDecision{Allowed: true, FailedOpen: true}
		}
		if !ok {
			// lost the race for the last slot; release what we took
			for _, taken := range incremented {
				if err := t.repo.Decrement(taken.ID); err != nil {
					log.Warn().Err(err).Str("bucket_id", taken.ID).Msg("quota rollback failed")
				}
			}
			return reject(b, now.Unix())
		}
		b.CurrentCount++
		incremented = append(incremented, b)
	}

	tightest := buckets[0]
	for _, b := range buckets[1:] {
		if b.Remaining() < tightest.Remaining() {
			tightest = b
		}
	}

	return &QuotaDecision{
		Allowed:   true,
		Limit:     tightest.LimitValue,
		Remaining: tightest.Remaining(),
		ResetAt:   tightest.ResetAt,
	}
}

// ProvisionBuckets creates the standard bucket set for a newly issued key.
// Windows with a zero limit are skipped entirely, so a key without buckets
// is unlimited.
func (t *QuotaTracker) ProvisionBuckets(apiKeyID string, hourly, daily, monthly int) error {
	now := t.clock.Now()
	limits := []struct {
		kind  string
		limit int
	}{
		{models.WindowHourly, hourly},
		{models.WindowDaily, daily},
		{models.WindowMonthly, monthly},
	}

	for _, l := range limits {
		if l.limit <= 0 {
			continue
		}
		bucket := &models.QuotaBucket{
			APIKeyID:   apiKeyID,
			WindowKind: l.kind,
			LimitValue: l.limit,
			ResetAt:    models.NextWindowBoundary(l.kind, now).Unix(),
		}
		if err := t.repo.Create(bucket); err != nil {
			return err
		}
	}
	return nil
}

// fullestBucket returns the bucket to report a rejection against, or nil if
// every bucket has headroom. With several full buckets the one with the
// smallest limit wins.
func fullestBucket(buckets []*models.QuotaBucket) *models.QuotaBucket {
	var full *models.QuotaBucket
	for _, b := range buckets {
		if b.CurrentCount < b.LimitValue {
			continue
		}
		if full == nil || b.LimitValue < full.LimitValue {
			full = b
		}
	}
	return full
}

func reject(b *models.QuotaBucket, now int64) *QuotaDecision {
	retry := b.ResetAt - now
	if retry < 0 {
		retry = 0
	}
	return &QuotaDecision{
		Allowed:    false,
		Limit:      b.LimitValue,
		Remaining:  0,
		ResetAt:    b.ResetAt,
		RetryAfter: retry,
	}
}
