package simulator

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/util"
)

// advanceVehicle moves the vehicle one stop along its route, reversing at either end.
// Returns false for single stop routes which have nowhere to go.
func advanceVehicle(vehicle *ctdf.Vehicle) bool {
	if vehicle.TotalStops < 2 {
		return false
	}

	lastIndex := vehicle.TotalStops - 1

	switch {
	case vehicle.Direction == ctdf.VehicleDirectionForward && vehicle.CurrentStopIndex >= lastIndex:
		vehicle.Direction = ctdf.VehicleDirectionBackward
		vehicle.CurrentStopIndex = lastIndex - 1
	case vehicle.Direction == ctdf.VehicleDirectionBackward && vehicle.CurrentStopIndex <= 0:
		vehicle.Direction = ctdf.VehicleDirectionForward
		vehicle.CurrentStopIndex = 1
	case vehicle.Direction == ctdf.VehicleDirectionBackward:
		vehicle.CurrentStopIndex--
	default:
		vehicle.CurrentStopIndex++
	}

	return true
}

// tick runs one position & prediction cycle and returns the full prediction batch
func (s *state) tick(now time.Time) []*ctdf.Prediction {
	s.dropOrphans()

	for _, routeID := range s.routeOrder {
		for _, prediction := range s.predictionsForRoute(routeID) {
			if prediction.Status == ctdf.PredictionStatusCancelled || prediction.PredictedArrival == nil {
				continue
			}

			arrival := prediction.PredictedArrival.Add(-s.config.CountdownStep)
			prediction.PredictedArrival = &arrival
		}
	}

	for _, routeID := range s.routeOrder {
		s.moveVehicle(routeID, now)
	}

	batch := make([]*ctdf.Prediction, 0, len(s.predictions))

	for _, routeID := range s.routeOrder {
		vehicle := s.vehicleForRoute(routeID)
		if vehicle == nil {
			continue
		}

		for _, prediction := range s.predictionsForRoute(routeID) {
			prediction.Visited = vehicle.HasVisited(prediction.StopIndex)
			s.transitionStatus(prediction)
			prediction.Timestamp = now

			batch = append(batch, prediction)
		}

		vehicle.VisitedStops = visitedStops(s.routes[routeID], vehicle)
	}

	return batch
}

// moveVehicle advances the route's vehicle once its current stop has been reached
// (or is cancelled) and recomputes every prediction on the route
func (s *state) moveVehicle(routeID string, now time.Time) {
	vehicle := s.vehicleForRoute(routeID)
	route := s.routes[routeID]
	if vehicle == nil || route == nil {
		return
	}

	current := s.predictions[ctdf.PredictionIdentifier(routeID, route.Stops[vehicle.CurrentStopIndex])]
	if current == nil {
		return
	}

	reached := current.Status == ctdf.PredictionStatusCancelled ||
		current.PredictedArrival == nil ||
		!current.PredictedArrival.After(now)
	if !reached {
		return
	}

	if !advanceVehicle(vehicle) {
		return
	}
	vehicle.ModificationDateTime = now

	for _, prediction := range s.predictionsForRoute(routeID) {
		if prediction.Status == ctdf.PredictionStatusCancelled {
			continue
		}

		arrival := s.arrivalFor(vehicle.StopsAway(prediction.StopIndex), now)
		if arrival != nil && prediction.Status == ctdf.PredictionStatusDelayed {
			delayed := arrival.Add(time.Duration(prediction.DelayMinutes) * time.Minute)
			arrival = &delayed
		}
		prediction.PredictedArrival = arrival
	}
}

// transitionStatus applies at most one random status change to the prediction
func (s *state) transitionStatus(prediction *ctdf.Prediction) {
	switch prediction.Status {
	case ctdf.PredictionStatusOnTime:
		if chance(s.random, s.config.DelayProbability) {
			delay := s.config.DelayMinutesMin + s.random.IntN(s.config.DelayMinutesMax-s.config.DelayMinutesMin+1)

			prediction.Status = ctdf.PredictionStatusDelayed
			prediction.DelayMinutes = delay
			if prediction.PredictedArrival != nil {
				arrival := prediction.PredictedArrival.Add(time.Duration(delay) * time.Minute)
				prediction.PredictedArrival = &arrival
			}
		} else if chance(s.random, s.config.CancellationProbability) {
			prediction.Status = ctdf.PredictionStatusCancelled
			prediction.DelayMinutes = 0
		}
	case ctdf.PredictionStatusDelayed:
		if chance(s.random, s.config.RecoveryProbability) {
			prediction.Status = ctdf.PredictionStatusOnTime
			prediction.DelayMinutes = 0
		}
	}
}

// dropOrphans removes predictions whose vehicle no longer exists
func (s *state) dropOrphans() {
	for _, routeID := range s.routeOrder {
		ids := s.routePredictions[routeID]

		util.InPlaceFilter(&ids, func(id string) bool {
			prediction, exists := s.predictions[id]
			if !exists {
				return false
			}

			if _, exists := s.vehicles[prediction.VehicleRef]; !exists {
				log.Warn().
					Str("prediction", id).
					Str("vehicle", prediction.VehicleRef).
					Msg("Dropping prediction for missing vehicle")
				delete(s.predictions, id)
				return false
			}

			return true
		})

		s.routePredictions[routeID] = ids
	}
}
