package ctdf

import "time"

type VehicleDirection string

const (
	VehicleDirectionForward  VehicleDirection = "Forward"
	VehicleDirectionBackward VehicleDirection = "Backward"
)

type Vehicle struct {
	PrimaryIdentifier string `groups:"basic"`
	RouteRef          string `groups:"basic"`

	CurrentStopIndex int              `groups:"basic"`
	Direction        VehicleDirection `groups:"basic"`
	TotalStops       int              `groups:"basic"`

	VisitedStops []string `groups:"detailed"`

	ModificationDateTime time.Time `groups:"detailed"`
}

// StopsAway returns the signed number of stops between the vehicle and stopIndex
// along its current direction of travel. Negative values are behind the vehicle.
func (v *Vehicle) StopsAway(stopIndex int) int {
	if v.Direction == VehicleDirectionBackward {
		return v.CurrentStopIndex - stopIndex
	}
	return stopIndex - v.CurrentStopIndex
}

func (v *Vehicle) HasVisited(stopIndex int) bool {
	if v.Direction == VehicleDirectionBackward {
		return stopIndex > v.CurrentStopIndex
	}
	return stopIndex < v.CurrentStopIndex
}
