package exchange

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"neurax/internal/neuron"
)

// RedisBus shares knowledge packages through Redis. The newest package of
// each node is stored under its own key and every publish is broadcast on
// the instance's knowledge channel.
type RedisBus struct {
	rdb          *redis.Client
	instanceName string
}

// NewRedisBus creates a bus namespaced by instanceName.
func NewRedisBus(redisOpts *redis.Options, instanceName string) (*RedisBus, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &RedisBus{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Ping verifies Redis connectivity.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

// Publish stores pkg, registers its node and broadcasts it in one
// transaction.
func (b *RedisBus) Publish(ctx context.Context, pkg neuron.KnowledgePackage) error {
	if pkg.NodeID == "" {
		return ErrMissingNodeID
	}

	data, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge package: %w", err)
	}

	_, err = b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, KnowledgeKey(b.instanceName, pkg.NodeID), data, 0)
		pipe.SAdd(ctx, NodesKey(b.instanceName), pkg.NodeID)
		pipe.Publish(ctx, KnowledgeEventsChannel(b.instanceName), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish knowledge package: %w", err)
	}
	return nil
}

func (b *RedisBus) Latest(ctx context.Context) (map[string]neuron.KnowledgePackage, error) {
	nodeIDs, err := b.rdb.SMembers(ctx, NodesKey(b.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read node set: %w", err)
	}

	latest := make(map[string]neuron.KnowledgePackage, len(nodeIDs))
	if len(nodeIDs) == 0 {
		return latest, nil
	}

	keys := make([]string, len(nodeIDs))
	for i, id := range nodeIDs {
		keys[i] = KnowledgeKey(b.instanceName, id)
	}
	values, err := b.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge packages: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Key expired or was removed after SMEMBERS.
			continue
		}
		var pkg neuron.KnowledgePackage
		if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
			return nil, fmt.Errorf("failed to decode package of node %s: %w", nodeIDs[i], err)
		}
		latest[pkg.NodeID] = pkg
	}
	return latest, nil
}

// Subscribe returns once the Redis subscription is confirmed, so packages
// published afterwards are delivered.
func (b *RedisBus) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, KnowledgeEventsChannel(b.instanceName))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to knowledge events: %w", err)
	}

	eventsChan := make(chan neuron.KnowledgePackage, subscriptionBuffer)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var pkg neuron.KnowledgePackage
				if err := json.Unmarshal([]byte(msg.Payload), &pkg); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal knowledge event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- pkg:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
