// Package cache provides the cache-invalidation channel: writers publish the
// keys they touched so processes holding a cached copy drop it. Publication
// is mandatory for routing-config writers, since a missed publish can leave
// stale routing in place indefinitely, but it is not transactional with the
// store write, so readers may observe a short stale window.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// Kind classifies what a cache key refers to.
type Kind string

const (
	KindRouting Kind = "routing"
	KindConfig  Kind = "config"
	KindAccount Kind = "account"
)

// Key names one cached entry to drop.
type Key struct {
	Kind Kind   `json:"kind"`
	Key  string `json:"key"`
}

// RoutingKey builds the invalidation key for a merchant/profile routing config.
func RoutingKey(merchantID, profileID string) Key {
	return Key{Kind: KindRouting, Key: fmt.Sprintf("routing_config_%s_%s", merchantID, profileID)}
}

// AccountKey builds the invalidation key for a merchant account's cached
// routing ref.
func AccountKey(merchantID string) Key {
	return Key{Kind: KindAccount, Key: "merchant_account_" + merchantID}
}

// Publisher is the invalidation channel. Publish failures must surface to the
// caller; routing activation treats them as errors, not best-effort.
type Publisher interface {
	Publish(ctx context.Context, keys ...Key) error
}

// Message is the wire form of one invalidation publication.
type Message struct {
	Keys        []Key  `json:"keys"`
	PublishedAt string `json:"published_at"`
}

// SQSPublisher publishes invalidation messages to an SQS queue that every
// process in the fleet drains.
type SQSPublisher struct {
	client   *sqs.Client
	queueURL string
	logger   *slog.Logger
}

// NewSQSPublisher creates a publisher bound to an existing queue URL.
func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the publisher.
func (p *SQSPublisher) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// Publish sends one message naming all invalidated keys.
func (p *SQSPublisher) Publish(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}

	body, err := json.Marshal(Message{
		Keys:        keys,
		PublishedAt: core.NowFormatted(),
	})
	if err != nil {
		return fmt.Errorf("marshal invalidation message: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("publish invalidation message: %w", err)
	}

	p.logger.Debug("published cache invalidation", "keys", len(keys))
	return nil
}

// EnsureQueue creates the invalidation queue if needed and returns its URL.
func EnsureQueue(ctx context.Context, client *sqs.Client, name string) (string, error) {
	out, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("create invalidation queue %s: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

// Broker is an in-memory Publisher with fan-out to in-process subscribers.
// Used by components that keep a local cache inside the same process, and as
// the Publisher in tests.
type Broker struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

type subscription struct {
	ch chan Message
}

// NewBroker creates a new in-memory Broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[*subscription]struct{}),
	}
}

// Publish delivers the keys to every subscriber. Slow subscribers drop
// messages rather than blocking the writer.
func (b *Broker) Publish(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}

	msg := Message{Keys: keys, PublishedAt: core.NowFormatted()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			slog.Warn("dropping invalidation message, subscriber channel full")
		}
	}
	return nil
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel.
func (b *Broker) Subscribe() (<-chan Message, func()) {
	sub := &subscription{ch: make(chan Message, 64)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		close(sub.ch)
	}
	return sub.ch, unsubscribe
}
