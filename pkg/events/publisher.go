package events

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/broadcast"
	"github.com/travigo/transitlive/pkg/ctdf"
)

const QueueName = "events-queue"

// Publisher forwards hub events onto the redis events queue for out of process consumers
type Publisher struct {
	queue rmq.Queue
}

func NewPublisher(connection rmq.Connection) (*Publisher, error) {
	queue, err := connection.OpenQueue(QueueName)
	if err != nil {
		return nil, err
	}

	return &Publisher{queue: queue}, nil
}

func (p *Publisher) Publish(event *ctdf.Event) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.queue.PublishBytes(eventBytes)
}

// Run publishes every event received on the subscription until it is disconnected
func (p *Publisher) Run(subscription *broadcast.Subscription) {
	subscription.Drain(func(event *ctdf.Event) {
		if err := p.Publish(event); err != nil {
			log.Error().Err(err).Str("event", string(event.Type)).Msg("Failed to publish event to queue")
		}
	})
}
