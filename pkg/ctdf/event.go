package ctdf

import (
	"time"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Body      interface{}
}

type EventType string

const (
	EventTypeConnected         EventType = "connected"
	EventTypeArrivalUpdates    EventType = "arrival_updates"
	EventTypeStopArrivalUpdate EventType = "stop_arrival_update"
	EventTypeServiceAlert      EventType = "service_alerts"
)

type ServiceAlertAction string

const (
	ServiceAlertActionCreated     ServiceAlertAction = "created"
	ServiceAlertActionUpdated     ServiceAlertAction = "updated"
	ServiceAlertActionExpired     ServiceAlertAction = "expired"
	ServiceAlertActionDeactivated ServiceAlertAction = "deactivated"
	ServiceAlertActionDeleted     ServiceAlertAction = "deleted"
)

// ServiceAlertEvent is the body of an EventTypeServiceAlert event
type ServiceAlertEvent struct {
	Action       ServiceAlertAction
	ServiceAlert *ServiceAlert
}

// StopArrivalUpdateEvent is the body of an EventTypeStopArrivalUpdate event
type StopArrivalUpdateEvent struct {
	StopRef     string
	Predictions []*Prediction
}
