package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/elastic_client"
)

// ArrivalsElasticEvent summarises one arrival batch, the full batch is too large to index every tick
type ArrivalsElasticEvent struct {
	Timestamp time.Time

	Predictions int
	OnTime      int
	Delayed     int
	Cancelled   int
	Visited     int
}

type ServiceAlertElasticEvent struct {
	Timestamp time.Time

	Action ctdf.ServiceAlertAction

	PrimaryIdentifier string
	AlertType         ctdf.ServiceAlertType
	Severity          ctdf.ServiceAlertSeverity
	AffectedRoutes    []string
	UpdateCount       int
	Active            bool
}

type IndexingBatchConsumer struct {
	index func(indexName string, document []byte)
}

func NewIndexingBatchConsumer() *IndexingBatchConsumer {
	return &IndexingBatchConsumer{
		index: func(indexName string, document []byte) {
			elastic_client.IndexRequest(indexName, bytes.NewReader(document))
		},
	}
}

func (c *IndexingBatchConsumer) Consume(batch rmq.Deliveries) {
	for _, payload := range batch.Payloads() {
		if err := c.consumePayload([]byte(payload)); err != nil {
			log.Error().Err(err).Msg("Failed to index event")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack event")
		}
	}
}

func (c *IndexingBatchConsumer) consumePayload(payload []byte) error {
	var event struct {
		Type      ctdf.EventType
		Timestamp time.Time
		Body      json.RawMessage
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}

	var document interface{}

	switch event.Type {
	case ctdf.EventTypeArrivalUpdates:
		var predictions []*ctdf.Prediction
		if err := json.Unmarshal(event.Body, &predictions); err != nil {
			return err
		}
		document = summariseArrivals(event.Timestamp, predictions)
	case ctdf.EventTypeServiceAlert:
		var alertEvent ctdf.ServiceAlertEvent
		if err := json.Unmarshal(event.Body, &alertEvent); err != nil {
			return err
		}
		if alertEvent.ServiceAlert == nil {
			return fmt.Errorf("service alert event %s has no alert", alertEvent.Action)
		}

		document = ServiceAlertElasticEvent{
			Timestamp:         event.Timestamp,
			Action:            alertEvent.Action,
			PrimaryIdentifier: alertEvent.ServiceAlert.PrimaryIdentifier,
			AlertType:         alertEvent.ServiceAlert.AlertType,
			Severity:          alertEvent.ServiceAlert.Severity,
			AffectedRoutes:    alertEvent.ServiceAlert.AffectedRoutes,
			UpdateCount:       alertEvent.ServiceAlert.UpdateCount,
			Active:            alertEvent.ServiceAlert.Active,
		}
	default:
		return nil
	}

	documentBytes, err := json.Marshal(document)
	if err != nil {
		return err
	}

	c.index(IndexName(event.Type, event.Timestamp), documentBytes)

	return nil
}

func summariseArrivals(timestamp time.Time, predictions []*ctdf.Prediction) ArrivalsElasticEvent {
	summary := ArrivalsElasticEvent{
		Timestamp:   timestamp,
		Predictions: len(predictions),
	}

	for _, prediction := range predictions {
		switch prediction.Status {
		case ctdf.PredictionStatusDelayed:
			summary.Delayed++
		case ctdf.PredictionStatusCancelled:
			summary.Cancelled++
		default:
			summary.OnTime++
		}

		if prediction.Visited {
			summary.Visited++
		}
	}

	return summary
}

func IndexName(eventType ctdf.EventType, timestamp time.Time) string {
	yearNumber, weekNumber := timestamp.ISOWeek()
	return fmt.Sprintf("transitlive-%s-%d-%d", eventType, yearNumber, weekNumber)
}
