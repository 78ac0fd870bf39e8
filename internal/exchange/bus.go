// Package exchange moves knowledge packages between neurons.
package exchange

import (
	"context"
	"errors"
	"sync"

	"neurax/internal/neuron"
)

// subscriptionBuffer bounds the events queued for a slow subscriber.
const subscriptionBuffer = 64

var (
	ErrClosed        = errors.New("exchange is closed")
	ErrMissingNodeID = errors.New("knowledge package has no node id")
)

// Bus stores the newest package of every node and streams packages to
// subscribers. Implementations are safe for concurrent use.
type Bus interface {
	// Publish records pkg as the newest package of its node and notifies
	// subscribers.
	Publish(ctx context.Context, pkg neuron.KnowledgePackage) error
	// Latest returns the newest package per node id.
	Latest(ctx context.Context) (map[string]neuron.KnowledgePackage, error)
	// Subscribe streams packages published after it returns.
	Subscribe(ctx context.Context) (*Subscription, error)
	Close() error
}

// Subscription is an active stream of knowledge packages. Callers must call
// Close when done; cancelling the subscribe context also ends it.
type Subscription struct {
	events <-chan neuron.KnowledgePackage
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the package channel. It is closed when the subscription
// ends.
func (s *Subscription) Events() <-chan neuron.KnowledgePackage {
	return s.events
}

// Errors returns non-fatal decode errors. Offending messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

var (
	_ Bus = (*MemoryBus)(nil)
	_ Bus = (*RedisBus)(nil)
)
