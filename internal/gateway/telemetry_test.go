package gateway

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"iotgate/internal/platform/models"
)

// captureSink records flushed batches and can be told to fail.
type captureSink struct {
	mu      sync.Mutex
	batches [][]*models.RequestLog
	fail    bool
	flushed chan int
}

func newCaptureSink() *captureSink {
	return &captureSink{flushed: make(chan int, 16)}
}

func (s *captureSink) InsertBatch(entries []*models.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("sink unavailable")
	}
	s.batches = append(s.batches, entries)
	s.flushed <- len(entries)
	return nil
}

func (s *captureSink) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *captureSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func waitForFlush(t *testing.T, sink *captureSink) int {
	t.Helper()
	select {
	case n := <-sink.flushed:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
		return 0
	}
}

func TestRecorderStampsEntries(t *testing.T) {
	sink := newCaptureSink()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	rec := NewRecorder(sink, clock, 10, time.Minute)

	entry := &models.RequestLog{Endpoint: "/api/devices", Method: "GET", StatusCode: 200}
	rec.Record(entry)

	if !strings.HasPrefix(entry.ID, "req_") {
		t.Errorf("expected stamped req_ id, got %q", entry.ID)
	}
	if entry.CreatedAt != clock.Now().Unix() {
		t.Errorf("expected created_at from clock, got %d", entry.CreatedAt)
	}
	if rec.Pending() != 1 {
		t.Errorf("expected 1 pending entry, got %d", rec.Pending())
	}
}

func TestRecorderFlushesAtThreshold(t *testing.T) {
	sink := newCaptureSink()
	clock := clockwork.NewFakeClock()
	rec := NewRecorder(sink, clock, 3, time.Minute)

	for i := 0; i < 3; i++ {
		rec.Record(&models.RequestLog{Endpoint: "/api/devices", Method: "GET"})
	}

	if n := waitForFlush(t, sink); n != 3 {
		t.Errorf("expected a batch of 3, got %d", n)
	}
	if rec.Pending() != 0 {
		t.Errorf("expected empty buffer after flush, got %d", rec.Pending())
	}
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	sink := newCaptureSink()
	clock := clockwork.NewFakeClock()
	rec := NewRecorder(sink, clock, 100, 30*time.Second)
	rec.Start()
	defer rec.Stop()

	rec.Record(&models.RequestLog{Endpoint: "/api/devices", Method: "GET"})

	// wait for the flusher to arm its timer before advancing
	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)

	if n := waitForFlush(t, sink); n != 1 {
		t.Errorf("expected a batch of 1, got %d", n)
	}
}

func TestRecorderRequeuesFailedBatch(t *testing.T) {
	sink := newCaptureSink()
	sink.setFail(true)
	clock := clockwork.NewFakeClock()
	rec := NewRecorder(sink, clock, 100, time.Minute)

	rec.Record(&models.RequestLog{Endpoint: "/api/devices", Method: "GET"})
	rec.Record(&models.RequestLog{Endpoint: "/api/endpoints", Method: "POST"})

	if err := rec.Flush(); err == nil {
		t.Fatal("expected flush error while sink is down")
	}
	if rec.Pending() != 2 {
		t.Errorf("failed batch must be re-queued, pending = %d", rec.Pending())
	}

	// entries recorded after the failure land behind the re-queued batch
	rec.Record(&models.RequestLog{Endpoint: "/api/keys", Method: "GET"})
	sink.setFail(false)
	if err := rec.Flush(); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}

	if n := waitForFlush(t, sink); n != 3 {
		t.Errorf("expected all 3 entries in one batch, got %d", n)
	}
	sink.mu.Lock()
	first := sink.batches[0][0].Endpoint
	sink.mu.Unlock()
	if first != "/api/devices" {
		t.Errorf("re-queued entries must keep their order, first = %q", first)
	}
}

func TestRecorderStopDrains(t *testing.T) {
	sink := newCaptureSink()
	clock := clockwork.NewFakeClock()
	rec := NewRecorder(sink, clock, 100, time.Minute)
	rec.Start()

	rec.Record(&models.RequestLog{Endpoint: "/api/devices", Method: "GET"})
	rec.Record(&models.RequestLog{Endpoint: "/api/devices", Method: "GET"})
	rec.Stop()

	if sink.total() != 2 {
		t.Errorf("expected 2 entries drained on stop, got %d", sink.total())
	}
	// Stop is idempotent
	rec.Stop()
}
