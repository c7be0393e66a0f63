// Package broadcast implements the broadcast fabric (spec.md §4.I): a
// process-wide multi-producer/multi-consumer bounded channel of
// domain.TileVersionEvent, with per-client buffered delivery and a
// configurable drop policy. The non-blocking send / slow-client handling
// shape is grounded on
// _examples/adred-codev-ws_poc/ws/internal/shared/broadcast.go, generalized
// from its NATS-subject hierarchical filtering (per-channel subscriber
// index) to an in-process channel fanned out to every attached receiver,
// each of which filters by its own subscribed-tile set (spec.md §4.I, §5
// "no guarantee of cross-tile order").
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
)

// DropPolicy selects what happens when a receiver's bounded queue is full.
type DropPolicy int

const (
	DropNewest DropPolicy = iota
	DropOldest
)

// Receiver is one client's attachment to the fabric. A lagged event count
// accumulates whenever the queue was full at publish time; the consumer
// reads and resets it with TakeLagged, mirroring the tokio broadcast
// receiver's Lagged(n) signal (spec.md §4.I, §5).
type Receiver struct {
	id         uint64
	ch         chan domain.TileVersionEvent
	dropPolicy DropPolicy
	lagged     int64
	popMu      sync.Mutex
}

// Events returns the channel to select on.
func (r *Receiver) Events() <-chan domain.TileVersionEvent {
	return r.ch
}

// TakeLagged reads and resets the accumulated lagged-event count.
func (r *Receiver) TakeLagged() int64 {
	return atomic.SwapInt64(&r.lagged, 0)
}

// Fabric is the process-wide broadcast fan-out. One instance is shared by
// every connection.
type Fabric struct {
	mu         sync.RWMutex
	receivers  map[uint64]*Receiver
	nextID     uint64
	bufferSize int
	dropPolicy DropPolicy
	logger     zerolog.Logger
}

// New builds a Fabric with the given per-receiver buffer size and drop
// policy (spec.md §6 configuration inputs: broadcast_buffer_size,
// drop_newest_on_full_buffer).
func New(bufferSize int, dropPolicy DropPolicy, logger zerolog.Logger) *Fabric {
	return &Fabric{
		receivers:  make(map[uint64]*Receiver),
		bufferSize: bufferSize,
		dropPolicy: dropPolicy,
		logger:     logger,
	}
}

// Subscribe attaches a new receiver to the fabric.
func (f *Fabric) Subscribe() *Receiver {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r := &Receiver{
		id:         f.nextID,
		ch:         make(chan domain.TileVersionEvent, f.bufferSize),
		dropPolicy: f.dropPolicy,
	}
	f.receivers[r.id] = r
	return r
}

// Unsubscribe detaches a receiver. Connection teardown must call this to
// release the fabric's reference (spec.md §4.I "connection teardown must
// abort the forwarder task... and release all subscriptions").
func (f *Fabric) Unsubscribe(r *Receiver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.receivers, r.id)
}

// Publish fans event out to every attached receiver, non-blocking. A full
// receiver queue is handled per its configured drop policy; either way the
// publish call itself never blocks on a slow client (grounded on
// broadcast.go's "CRITICAL: We do NOT block here").
func (f *Fabric) Publish(event domain.TileVersionEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.receivers {
		f.deliver(r, event)
	}
}

func (f *Fabric) deliver(r *Receiver, event domain.TileVersionEvent) {
	select {
	case r.ch <- event:
		return
	default:
	}

	switch r.dropPolicy {
	case DropOldest:
		r.popMu.Lock()
		select {
		case <-r.ch:
			atomic.AddInt64(&r.lagged, 1)
		default:
		}
		select {
		case r.ch <- event:
		default:
			atomic.AddInt64(&r.lagged, 1)
		}
		r.popMu.Unlock()
	default: // DropNewest
		atomic.AddInt64(&r.lagged, 1)
		f.logger.Debug().Uint64("receiver_id", r.id).Msg("broadcast queue full, dropping newest event")
	}
}

// Count reports the number of attached receivers, for metrics.
func (f *Fabric) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.receivers)
}
