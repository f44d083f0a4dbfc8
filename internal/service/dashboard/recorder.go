package dashboard

import (
	"context"
	"time"

	"github.com/oshokin/smart-office/internal/alert"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/repository/readings"
)

const (
	// recorderQueue is how many snapshots may wait for the writer.
	recorderQueue = 256
	// flushTimeout bounds the final write on shutdown.
	flushTimeout = 5 * time.Second
)

// recorder archives mirror snapshots in batches off the notification path.
type recorder struct {
	repo          readings.Repository
	batchSize     int
	flushInterval time.Duration

	queue chan readings.Reading
	done  chan struct{}
}

func newRecorder(repo readings.Repository, batchSize int, flushInterval time.Duration) *recorder {
	return &recorder{
		repo:          repo,
		batchSize:     max(batchSize, 1),
		flushInterval: flushInterval,
		queue:         make(chan readings.Reading, recorderQueue),
		done:          make(chan struct{}),
	}
}

// Record queues a snapshot. It never blocks; a full queue drops the snapshot.
func (r *recorder) Record(ctx context.Context, state office.SensorState) {
	reading := readings.NewReading(state, alert.Evaluate(state).Status())

	select {
	case r.queue <- reading:
	default:
		logger.WarnKV(ctx, "Archive queue full, reading dropped", "at", reading.At)
	}
}

// run writes batches until ctx is canceled, then flushes what is left.
func (r *recorder) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]readings.Reading, 0, r.batchSize)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}

		if err := r.repo.InsertMany(ctx, batch); err != nil {
			logger.ErrorKV(ctx, "Failed to archive readings", "count", len(batch), "error", err)
		}

		batch = make([]readings.Reading, 0, r.batchSize)
	}

	for {
		select {
		case <-ctx.Done():
			r.drain(&batch)

			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			flush(flushCtx)
			cancel()

			return
		case reading := <-r.queue:
			batch = append(batch, reading)
			if len(batch) >= r.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// drain moves every queued reading into the batch.
func (r *recorder) drain(batch *[]readings.Reading) {
	for {
		select {
		case reading := <-r.queue:
			*batch = append(*batch, reading)
		default:
			return
		}
	}
}

// wait blocks until run has returned.
func (r *recorder) wait() {
	<-r.done
}
