/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amqp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill-amqp/v2/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	"github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/lifecycle"
	"github.com/trustbloc/creditledger/pkg/pubsub/spi"
	"github.com/trustbloc/creditledger/pkg/pubsub/wmlogger"
)

const loggerModule = "pubsub"

var logger = log.New(loggerModule)

const (
	defaultMaxConnectRetries          = 25
	defaultMaxConnectInterval         = 5 * time.Second
	defaultMaxConnectElapsedTime      = 3 * time.Minute
	defaultMaxConnectionSubscriptions = 1000

	exchange           = "creditledger"
	directExchangeType = "direct"
)

// Config holds the configuration for the publisher/subscriber.
type Config struct {
	URI                        string
	MaxConnectRetries          uint64
	MaxConnectionSubscriptions int
}

type closeable interface {
	Close() error
}

type subscriber interface {
	closeable
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

type initializingSubscriber interface {
	subscriber
	SubscribeInitialize(topic string) error
}

type publisher interface {
	closeable
	Publish(topic string, messages ...*message.Message) error
}

type subscriberFactory = func() (initializingSubscriber, error)

type publisherFactory = func() (publisher, error)

// PubSub implements a publisher/subscriber that connects to an AMQP-compatible message queue.
type PubSub struct {
	*lifecycle.Lifecycle
	Config

	amqpConfig        amqp.Config
	subscriber        subscriber
	publisher         publisher
	pools             []*subscriberPool
	mutex             sync.RWMutex
	subscriberFactory subscriberFactory
	createPublisher   publisherFactory
}

// New returns a new AMQP publisher/subscriber.
func New(cfg Config) *PubSub {
	if cfg.MaxConnectionSubscriptions == 0 {
		cfg.MaxConnectionSubscriptions = defaultMaxConnectionSubscriptions
	}

	p := &PubSub{
		Config:     cfg,
		amqpConfig: newQueueConfig(cfg.URI),
	}

	p.Lifecycle = lifecycle.New("amqp",
		lifecycle.WithStart(p.start),
		lifecycle.WithStop(p.stop))

	p.subscriberFactory = func() (initializingSubscriber, error) {
		return amqp.NewSubscriber(p.amqpConfig, wmlogger.New())
	}

	p.createPublisher = func() (publisher, error) {
		return amqp.NewPublisher(p.amqpConfig, wmlogger.New())
	}

	// Start the service immediately.
	p.Start()

	return p
}

// Subscribe subscribes to a topic and returns the Go channel over which messages
// are sent. The returned channel will be closed when Close() is called on this struct.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.SubscribeWithOpts(ctx, topic)
}

// SubscribeWithOpts subscribes to a topic using the given options, and returns the Go channel over which messages
// are sent. The returned channel will be closed when Close() is called on this struct.
func (p *PubSub) SubscribeWithOpts(ctx context.Context, topic string,
	opts ...spi.Option) (<-chan *message.Message, error) {
	if p.State() != lifecycle.StateStarted {
		return nil, lifecycle.ErrNotStarted
	}

	options := &spi.Options{}

	for _, opt := range opts {
		opt(options)
	}

	if options.PoolSize == 0 {
		logger.Debug("Subscribing to topic", logfields.WithTopic(topic))

		return p.subscriber.Subscribe(ctx, topic)
	}

	logger.Debug("Creating subscriber pool for topic", logfields.WithTopic(topic),
		logfields.WithSize(options.PoolSize))

	pool, err := newSubscriberPool(ctx, options.PoolSize, p.subscriber, topic)
	if err != nil {
		return nil, fmt.Errorf("subscriber pool: %w", err)
	}

	p.mutex.Lock()
	p.pools = append(p.pools, pool)
	p.mutex.Unlock()

	pool.start()

	return pool.msgChan, nil
}

// Publish publishes the given messages to the given topic.
func (p *PubSub) Publish(topic string, messages ...*message.Message) error {
	if p.State() != lifecycle.StateStarted {
		return lifecycle.ErrNotStarted
	}

	logger.Debug("Publishing messages to topic", logfields.WithTopic(topic))

	if err := p.publisher.Publish(topic, messages...); err != nil {
		return errors.NewTransient(err)
	}

	return nil
}

// PublishWithOpts simply calls Publish since options are not supported for AMQP publishers.
func (p *PubSub) PublishWithOpts(topic string, msg *message.Message, _ ...spi.Option) error {
	return p.Publish(topic, msg)
}

// IsConnected returns true if the publisher/subscriber is connected to the message queue.
func (p *PubSub) IsConnected() bool {
	return p.State() == lifecycle.StateStarted
}

// Close stops the publisher/subscriber.
func (p *PubSub) Close() error {
	p.Stop()

	return nil
}

func (p *PubSub) stop() {
	logger.Debug("Closing publisher...")

	if err := p.publisher.Close(); err != nil {
		logger.Warn("Error closing publisher", log.WithError(err))
	}

	logger.Debug("Closing subscriber...")

	if err := p.subscriber.Close(); err != nil {
		logger.Warn("Error closing subscriber", log.WithError(err))
	}

	logger.Debug("Closing pools...")

	p.mutex.RLock()
	defer p.mutex.RUnlock()

	for _, s := range p.pools {
		s.stop()
	}
}

func (p *PubSub) start() {
	logger.Info("Connecting to message queue", logfields.WithAddress(extractEndpoint(p.URI)))

	maxRetries := p.MaxConnectRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxConnectRetries
	}

	err := backoff.RetryNotify(
		p.connect,
		backoff.WithMaxRetries(newConnectBackOff(), maxRetries),
		func(err error, duration time.Duration) {
			logger.Debug("Error connecting to AMQP service. Retrying...",
				logfields.WithAddress(extractEndpoint(p.URI)), log.WithError(err))
		},
	)
	if err != nil {
		panic(fmt.Sprintf("Unable to connect to message queue after %d attempts", maxRetries))
	}

	logger.Info("Successfully connected to message queue", logfields.WithAddress(extractEndpoint(p.URI)))
}

func (p *PubSub) connect() error {
	pub, err := p.createPublisher()
	if err != nil {
		return err
	}

	p.subscriber = newSubscriberMgr(p.MaxConnectionSubscriptions, p.subscriberFactory)
	p.publisher = pub

	return nil
}

func newConnectBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     backoff.DefaultInitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         defaultMaxConnectInterval,
		MaxElapsedTime:      defaultMaxConnectElapsedTime,
		Clock:               backoff.SystemClock,
	}

	b.Reset()

	return b
}

type subscriberInfo struct {
	subscriber    initializingSubscriber
	subscriptions int
}

// subscriberConnectionMgr creates a new connection to the AMQP server whenever the maximum number
// of subscriptions for the current connection has been reached.
type subscriberConnectionMgr struct {
	createSubscriber  subscriberFactory
	mutex             sync.RWMutex
	subscribers       []*subscriberInfo
	current           *subscriberInfo
	subscriptionLimit int
}

func newSubscriberMgr(limit int, factory subscriberFactory) *subscriberConnectionMgr {
	return &subscriberConnectionMgr{
		subscriptionLimit: limit,
		createSubscriber:  factory,
	}
}

func (m *subscriberConnectionMgr) Close() error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	logger.Info("Closing subscriber connections", logfields.WithTotal(len(m.subscribers)))

	for _, s := range m.subscribers {
		if err := s.subscriber.Close(); err != nil {
			logger.Warn("Error closing subscriber", log.WithError(err))
		}
	}

	return nil
}

func (m *subscriberConnectionMgr) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s, err := m.get()
	if err != nil {
		return nil, err
	}

	return s.Subscribe(ctx, topic)
}

func (m *subscriberConnectionMgr) SubscribeInitialize(topic string) error {
	s, err := m.get()
	if err != nil {
		return err
	}

	return s.SubscribeInitialize(topic)
}

func (m *subscriberConnectionMgr) get() (initializingSubscriber, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.current == nil || m.current.subscriptions >= m.subscriptionLimit {
		logger.Info("Creating new subscriber connection.")

		s, err := m.createSubscriber()
		if err != nil {
			return nil, err
		}

		newCurrent := &subscriberInfo{subscriber: s}

		m.subscribers = append(m.subscribers, newCurrent)
		m.current = newCurrent
	}

	m.current.subscriptions++

	return m.current.subscriber, nil
}

func newQueueConfig(amqpURI string) amqp.Config {
	return amqp.Config{
		Connection: amqp.ConnectionConfig{AmqpURI: amqpURI},
		Marshaler:  amqp.DefaultMarshaler{},
		Exchange: amqp.ExchangeConfig{
			GenerateName: func(string) string { return exchange },
			Type:         directExchangeType,
			Durable:      true,
		},
		Queue: amqp.QueueConfig{
			GenerateName: amqp.GenerateQueueNameTopicName,
			Durable:      true,
		},
		QueueBind: amqp.QueueBindConfig{
			GenerateRoutingKey: func(queue string) string { return queue },
		},
		Publish: amqp.PublishConfig{
			GenerateRoutingKey: func(queue string) string { return queue },
		},
		Consume: amqp.ConsumeConfig{
			Qos:             amqp.QosConfig{PrefetchCount: 1},
			NoRequeueOnNack: true,
		},
		TopologyBuilder: &amqp.DefaultTopologyBuilder{},
	}
}

// extractEndpoint strips the user name and password from the URI so that it may be safely logged.
func extractEndpoint(amqpURI string) string {
	u, err := url.Parse(amqpURI)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path)
}
