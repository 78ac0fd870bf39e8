package exchange

import (
	"context"
	"maps"
	"sync"

	"neurax/internal/neuron"
)

// MemoryBus is an in-process Bus. Subscribers that fall behind lose packages,
// matching Pub/Sub at-most-once delivery.
type MemoryBus struct {
	mu          sync.RWMutex
	closed      bool
	latest      map[string]neuron.KnowledgePackage
	subscribers map[int]chan neuron.KnowledgePackage
	nextID      int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		latest:      make(map[string]neuron.KnowledgePackage),
		subscribers: make(map[int]chan neuron.KnowledgePackage),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, pkg neuron.KnowledgePackage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if pkg.NodeID == "" {
		return ErrMissingNodeID
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.latest[pkg.NodeID] = pkg
	for _, ch := range b.subscribers {
		select {
		case ch <- pkg:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Latest(ctx context.Context) (map[string]neuron.KnowledgePackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	return maps.Clone(b.latest), nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) (*Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	id := b.nextID
	b.nextID++
	events := make(chan neuron.KnowledgePackage, subscriptionBuffer)
	b.subscribers[id] = events
	b.mu.Unlock()

	errs := make(chan error)
	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		b.unsubscribe(id)
		close(errs)
	}()

	return &Subscription{
		events: events,
		errors: errs,
		cancel: cancel,
	}, nil
}

func (b *MemoryBus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Close ends every subscription and rejects further use.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	return nil
}
