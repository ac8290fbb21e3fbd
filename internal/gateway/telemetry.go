package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"iotgate/internal/platform/models"
)

// TelemetrySink receives flushed batches of request logs.
type TelemetrySink interface {
	InsertBatch(entries []*models.RequestLog) error
}

// Recorder buffers request telemetry in memory and flushes it when the
// buffer reaches its size threshold or the flush interval elapses,
// whichever comes first. A failed flush re-queues the batch for the next
// attempt. Recorder failures are never surfaced to the caller of Record.
type Recorder struct {
	sink     TelemetrySink
	clock    clockwork.Clock
	size     int
	interval time.Duration

	mu  sync.Mutex
	buf []*models.RequestLog

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewRecorder(sink TelemetrySink, clock clockwork.Clock, bufferSize int, flushInterval time.Duration) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}
	return &Recorder{
		sink:     sink,
		clock:    clock,
		size:     bufferSize,
		interval: flushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background interval flusher. Call Stop to drain.
func (r *Recorder) Start() {
	go func() {
		defer close(r.done)
		for {
			select {
			case <-r.stop:
				return
			case <-r.clock.After(r.interval):
				r.Flush()
			}
		}
	}()
}

// Stop halts the background flusher and drains whatever is buffered.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
		r.Flush()
	})
}

// Record buffers one telemetry entry, stamping its identifier and creation
// time. Crossing the size threshold triggers an asynchronous flush so the
// recording request never waits on the store.
func (r *Recorder) Record(entry *models.RequestLog) {
	if entry.ID == "" {
		entry.ID = "req_" + uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = r.clock.Now().Unix()
	}

	r.mu.Lock()
	r.buf = append(r.buf, entry)
	full := len(r.buf) >= r.size
	r.mu.Unlock()

	if full {
		go r.Flush()
	}
}

// Flush writes the current buffer to the sink. On failure the batch is
// pushed back in front of anything recorded in the meantime.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	batch := r.buf
	r.buf = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := r.sink.InsertBatch(batch); err != nil {
		log.Warn().Err(err).Int("batch_size", len(batch)).Msg("telemetry flush failed, re-queueing")
		r.mu.Lock()
		r.buf = append(batch, r.buf...)
		r.mu.Unlock()
		return err
	}
	return nil
}

// Pending reports the number of buffered entries, for tests and health.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}
