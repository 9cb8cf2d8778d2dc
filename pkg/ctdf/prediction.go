package ctdf

import (
	"fmt"
	"time"
)

type PredictionStatus string

const (
	PredictionStatusOnTime    PredictionStatus = "OnTime"
	PredictionStatusDelayed   PredictionStatus = "Delayed"
	PredictionStatusCancelled PredictionStatus = "Cancelled"
)

type Prediction struct {
	PrimaryIdentifier string `groups:"basic"`

	RouteRef   string `groups:"basic"`
	StopRef    string `groups:"basic"`
	VehicleRef string `groups:"basic"`

	RouteName   string        `groups:"basic"`
	RouteType   TransportType `groups:"basic"`
	RouteColour string        `groups:"basic"`
	StopName    string        `groups:"basic"`

	PredictedArrival *time.Time       `groups:"basic"`
	Status           PredictionStatus `groups:"basic"`
	DelayMinutes     int              `groups:"basic"`

	Visited   bool `groups:"basic"`
	StopIndex int  `groups:"detailed"`

	Timestamp time.Time `groups:"detailed"`
}

func PredictionIdentifier(routeID string, stopID string) string {
	return fmt.Sprintf("%s_%s", routeID, stopID)
}

// SecondsUntilArrival is clamped at zero. The boolean is false when the stop has already been passed.
func (p *Prediction) SecondsUntilArrival(now time.Time) (int, bool) {
	if p.PredictedArrival == nil {
		return 0, false
	}

	seconds := int(p.PredictedArrival.Sub(now).Seconds())
	if seconds < 0 {
		seconds = 0
	}

	return seconds, true
}
