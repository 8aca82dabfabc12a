// Package eventbus provides the in-process event bus connecting the
// registry and firmware manager to the dashboard push layer.
package eventbus

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/serialx/hashring"

	"geomesh.io/hyperbr/internal/log"
)

// EventBus routes keyed events to topic subscribers.
type EventBus interface {
	Publish(event *Event) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryEventBus partitions events by consistent-hashing the key, so
// per-key ordering survives concurrent publishers.
type InMemoryEventBus struct {
	partitions []*partition
	hashRing   *hashring.HashRing
	nodes      []string

	mu          sync.RWMutex
	subscribers map[string][]Handler
	closed      int32
	wg          sync.WaitGroup
}

// New creates a bus with the given partition and queue sizes.
func New(partitionCount, queueSize int) *InMemoryEventBus {
	if partitionCount <= 0 {
		partitionCount = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	bus := &InMemoryEventBus{
		partitions:  make([]*partition, partitionCount),
		nodes:       make([]string, partitionCount),
		subscribers: make(map[string][]Handler),
	}
	for i := 0; i < partitionCount; i++ {
		bus.nodes[i] = "partition-" + strconv.Itoa(i)
	}
	bus.hashRing = hashring.New(bus.nodes)

	for i := 0; i < partitionCount; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		bus.partitions[i] = &partition{
			id:     i,
			queue:  make(chan *Event, queueSize),
			ctx:    ctx,
			cancel: cancel,
		}
		bus.wg.Add(1)
		go bus.runPartition(bus.partitions[i])
	}
	return bus
}

// Publish enqueues the event on its key's partition. Publishing never
// blocks; a full partition rejects the event.
func (b *InMemoryEventBus) Publish(event *Event) error {
	if atomic.LoadInt32(&b.closed) == 1 {
		return fmt.Errorf("event bus is closed")
	}
	p := b.partitions[b.partitionID(event.Key)]
	select {
	case p.queue <- event:
		return nil
	default:
		return fmt.Errorf("partition %d queue is full", p.id)
	}
}

// Subscribe registers a handler for a topic. Multiple handlers per topic
// are allowed; each receives every event.
func (b *InMemoryEventBus) Subscribe(topic string, handler Handler) error {
	if atomic.LoadInt32(&b.closed) == 1 {
		return fmt.Errorf("event bus is closed")
	}
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
	b.mu.Unlock()
	return nil
}

// Close stops all partitions and waits for in-flight deliveries.
func (b *InMemoryEventBus) Close() error {
	if !atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
		return nil
	}
	for _, p := range b.partitions {
		p.cancel()
	}
	b.wg.Wait()
	return nil
}

func (b *InMemoryEventBus) partitionID(key string) int {
	node, ok := b.hashRing.GetNode(key)
	if !ok {
		return 0
	}
	for i, n := range b.nodes {
		if n == node {
			return i
		}
	}
	return 0
}

func (b *InMemoryEventBus) runPartition(p *partition) {
	defer b.wg.Done()
	for {
		select {
		case event := <-p.queue:
			b.dispatch(event)
		case <-p.ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case event := <-p.queue:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *InMemoryEventBus) dispatch(event *Event) {
	b.mu.RLock()
	handlers := b.subscribers[event.Topic]
	b.mu.RUnlock()
	for _, h := range handlers {
		if err := h(event); err != nil {
			log.GetLogger().WithError(err).Warnf("event handler failed for topic %s", event.Topic)
		}
	}
}
