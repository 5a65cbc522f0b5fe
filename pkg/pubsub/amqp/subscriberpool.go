/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amqp

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
)

// subscriberPool fans in messages from a fixed number of AMQP subscriptions
// on the same topic into a single channel consumed by the caller.
type subscriberPool struct {
	topic   string
	msgChan chan *message.Message
	sources []reflect.SelectCase
	logger  *log.Log
}

func newSubscriberPool(ctx context.Context, size int, subscriber subscriber,
	topic string) (*subscriberPool, error) {
	p := &subscriberPool{
		topic:   topic,
		msgChan: make(chan *message.Message, size),
		sources: make([]reflect.SelectCase, size),
		logger:  log.New(loggerModule, log.WithFields(log.WithTopic(topic))),
	}

	for i := 0; i < size; i++ {
		p.logger.Debug("Subscribing to topic...", logfields.WithIndex(i))

		msgChan, err := subscriber.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("subscribe to topic [%s]: %w", topic, err)
		}

		p.sources[i] = reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(msgChan),
		}
	}

	return p, nil
}

func (p *subscriberPool) start() {
	go p.forward()
}

// forward relays messages from all pooled subscriptions until one of
// the source channels is closed.
func (p *subscriberPool) forward() {
	p.logger.Info("Started subscriber pool", logfields.WithSize(len(p.sources)))

	for {
		i, value, ok := reflect.Select(p.sources)
		if !ok {
			p.logger.Info("Message channel was closed. Stopping subscriber pool.", logfields.WithIndex(i))

			return
		}

		msg := value.Interface().(*message.Message) //nolint:forcetypeassert

		p.logger.Debug("Subscriber pool got message", logfields.WithIndex(i), logfields.WithMessageID(msg.UUID))

		p.msgChan <- msg
	}
}

func (p *subscriberPool) stop() {
	p.logger.Info("Closing subscriber pool")

	close(p.msgChan)
}
