/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	"github.com/trustbloc/creditledger/pkg/errors"
)

var logger = log.New("event")

type publisher interface {
	Publish(topic string, messages ...*message.Message) error
}

// Publisher publishes domain events to a message queue.
type Publisher struct {
	pubSub      publisher
	jsonMarshal func(v interface{}) ([]byte, error)
}

// NewPublisher returns a new domain event publisher.
func NewPublisher(pubSub publisher) *Publisher {
	return &Publisher{
		pubSub:      pubSub,
		jsonMarshal: json.Marshal,
	}
}

// Publish publishes the given event to the given topic. A failure to
// publish is a transient error so that the caller may retry.
func (p *Publisher) Publish(topic string, event interface{}) error {
	payload, err := p.jsonMarshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for topic [%s]: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	logger.Debug("Publishing event", logfields.WithTopic(topic), logfields.WithMessageID(msg.UUID))

	if err := p.pubSub.Publish(topic, msg); err != nil {
		return errors.NewTransient(fmt.Errorf("publish to topic [%s]: %w", topic, err))
	}

	return nil
}
