package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/api/metrics"
	"github.com/sociallab/sociallab/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

type task struct {
	key string
	run func(ctx context.Context)
}

// Dispatcher runs deferred work on a fixed set of workers, sharded by key with
// consistent hashing so tasks for one key run in submission order.
type Dispatcher struct {
	workers  []chan task
	stopped  chan struct{}
	stopOnce sync.Once
	handoffs sync.WaitGroup
	log      zerolog.Logger
}

var _ ports.Scheduler = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan task, numWorkers),
		stopped: make(chan struct{}),
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan task, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		d.stopOnce.Do(func() { close(d.stopped) })
	}()
}

// Submit queues fn on the worker owning key and returns at once. It never
// blocks the caller: when the worker's buffer is full the hand-off moves to
// its own goroutine, which gives up once the dispatcher has stopped.
func (d *Dispatcher) Submit(key string, fn func(ctx context.Context)) {
	idx := d.shardIndex(key)
	t := task{key: key, run: fn}
	select {
	case d.workers[idx] <- t:
	case <-d.stopped:
		d.log.Warn().Str("key", key).Msg("dispatcher stopped, deferred task dropped")
		return
	default:
		d.log.Warn().Int("worker_id", idx).Msg("deferred queue full, handing off")
		d.handoffs.Add(1)
		go func() {
			defer d.handoffs.Done()
			select {
			case d.workers[idx] <- t:
			case <-d.stopped:
				d.log.Warn().Str("key", key).Msg("dispatcher stopped, deferred task dropped")
			}
		}()
	}
	metrics.DeferredQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan task) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ch:
			if !ok {
				return
			}
			metrics.DeferredQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.run(ctx, id, t)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, id int, t task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("key", t.key).Int("worker_id", id).Msg("deferred task panicked")
		}
	}()
	t.run(ctx)
}
