package simulator

import (
	"context"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/ctdf"
	"golang.org/x/exp/slices"
)

// VehiclePosition is a route's vehicle along with the status of every stop it serves
type VehiclePosition struct {
	Timestamp time.Time          `groups:"basic"`
	Route     *ctdf.Route        `groups:"basic"`
	Vehicle   *ctdf.Vehicle      `groups:"basic"`
	Stops     []*ctdf.Prediction `groups:"basic"`
}

type StopPredictions struct {
	Timestamp   time.Time
	Stop        *ctdf.Stop
	Predictions []*ctdf.Prediction
}

// Snapshot is a detached copy of the whole simulator state
type Snapshot struct {
	Timestamp     time.Time
	Initialised   bool
	Routes        []*ctdf.Route
	Stops         map[string]*ctdf.Stop
	Vehicles      []*ctdf.Vehicle
	Predictions   []*ctdf.Prediction
	ServiceAlerts []*ctdf.ServiceAlert
}

func clonePredictions(predictions []*ctdf.Prediction) []*ctdf.Prediction {
	cloned := []*ctdf.Prediction{}
	if err := copier.CopyWithOption(&cloned, &predictions, copier.Option{DeepCopy: true}); err != nil {
		log.Error().Err(err).Msg("Failed to copy predictions")
		return []*ctdf.Prediction{}
	}
	return cloned
}

func cloneVehicle(vehicle *ctdf.Vehicle) *ctdf.Vehicle {
	cloned := &ctdf.Vehicle{}
	if err := copier.CopyWithOption(cloned, vehicle, copier.Option{DeepCopy: true}); err != nil {
		log.Error().Err(err).Str("vehicle", vehicle.PrimaryIdentifier).Msg("Failed to copy vehicle")
	}
	return cloned
}

func cloneAlert(alert *ctdf.ServiceAlert) *ctdf.ServiceAlert {
	cloned := &ctdf.ServiceAlert{}
	if err := copier.CopyWithOption(cloned, alert, copier.Option{DeepCopy: true}); err != nil {
		log.Error().Err(err).Str("alert", alert.PrimaryIdentifier).Msg("Failed to copy service alert")
	}
	return cloned
}

func cloneAlerts(alerts []*ctdf.ServiceAlert) []*ctdf.ServiceAlert {
	cloned := make([]*ctdf.ServiceAlert, 0, len(alerts))
	for _, alert := range alerts {
		cloned = append(cloned, cloneAlert(alert))
	}
	return cloned
}

// sortByArrival orders soonest first with passed stops (no arrival) last
func sortByArrival(predictions []*ctdf.Prediction) {
	slices.SortStableFunc(predictions, func(a, b *ctdf.Prediction) int {
		switch {
		case a.PredictedArrival == nil && b.PredictedArrival == nil:
		case a.PredictedArrival == nil:
			return 1
		case b.PredictedArrival == nil:
			return -1
		default:
			if c := a.PredictedArrival.Compare(*b.PredictedArrival); c != 0 {
				return c
			}
		}
		return strings.Compare(a.RouteRef, b.RouteRef)
	})
}

func (e *Engine) VehicleForRoute(ctx context.Context, routeID string) (*VehiclePosition, error) {
	var position *VehiclePosition
	var queryErr error

	err := e.do(ctx, func(s *state, now time.Time) {
		route := s.routes[routeID]
		vehicle := s.vehicleForRoute(routeID)
		if route == nil || vehicle == nil {
			queryErr = ErrRouteNotFound
			return
		}

		position = &VehiclePosition{
			Timestamp: now,
			Route:     route,
			Vehicle:   cloneVehicle(vehicle),
			Stops:     clonePredictions(s.predictionsForRoute(routeID)),
		}
	})
	if err != nil {
		return nil, err
	}
	if queryErr != nil {
		return nil, queryErr
	}

	slices.SortFunc(position.Stops, func(a, b *ctdf.Prediction) int {
		return a.StopIndex - b.StopIndex
	})

	return position, nil
}

func (e *Engine) PredictionsForStop(ctx context.Context, stopID string) (*StopPredictions, error) {
	var result *StopPredictions
	var queryErr error

	err := e.do(ctx, func(s *state, now time.Time) {
		var matching []*ctdf.Prediction
		for _, routeID := range s.routeOrder {
			for _, prediction := range s.predictionsForRoute(routeID) {
				if prediction.StopRef == stopID {
					matching = append(matching, prediction)
				}
			}
		}

		stop := s.catalog.Stops[stopID]
		if s.initialised && stop == nil && len(matching) == 0 {
			queryErr = ErrStopNotFound
			return
		}

		result = &StopPredictions{
			Timestamp:   now,
			Stop:        stop,
			Predictions: clonePredictions(matching),
		}
	})
	if err != nil {
		return nil, err
	}
	if queryErr != nil {
		return nil, queryErr
	}

	sortByArrival(result.Predictions)

	return result, nil
}

func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snapshot *Snapshot

	err := e.do(ctx, func(s *state, now time.Time) {
		snapshot = &Snapshot{
			Timestamp:     now,
			Initialised:   s.initialised,
			Stops:         s.catalog.Stops,
			Predictions:   []*ctdf.Prediction{},
			Vehicles:      []*ctdf.Vehicle{},
			ServiceAlerts: cloneAlerts(s.sortedAlerts()),
		}

		for _, routeID := range s.routeOrder {
			snapshot.Routes = append(snapshot.Routes, s.routes[routeID])
			if vehicle := s.vehicleForRoute(routeID); vehicle != nil {
				snapshot.Vehicles = append(snapshot.Vehicles, cloneVehicle(vehicle))
			}
			snapshot.Predictions = append(snapshot.Predictions, clonePredictions(s.predictionsForRoute(routeID))...)
		}
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (e *Engine) ListServiceAlerts(ctx context.Context, filter AlertFilter) ([]*ctdf.ServiceAlert, error) {
	var alerts []*ctdf.ServiceAlert

	err := e.do(ctx, func(s *state, now time.Time) {
		alerts = cloneAlerts(s.listAlerts(filter))
	})

	return alerts, err
}

func (e *Engine) GetServiceAlert(ctx context.Context, id string) (*ctdf.ServiceAlert, error) {
	var alert *ctdf.ServiceAlert

	err := e.do(ctx, func(s *state, now time.Time) {
		if existing, exists := s.alerts[id]; exists {
			alert = cloneAlert(existing)
		}
	})
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, ErrAlertNotFound
	}

	return alert, nil
}

// mutateAlert runs an alert change on the coordinator and broadcasts the result
func (e *Engine) mutateAlert(ctx context.Context, fn func(s *state, now time.Time) (*alertChange, error)) (*ctdf.ServiceAlert, error) {
	var alert *ctdf.ServiceAlert
	var mutateErr error

	err := e.do(ctx, func(s *state, now time.Time) {
		change, err := fn(s, now)
		if err != nil {
			mutateErr = err
			return
		}

		e.publishAlert(now, change)
		alert = cloneAlert(change.Alert)
	})
	if err != nil {
		return nil, err
	}

	return alert, mutateErr
}

func (e *Engine) CreateServiceAlert(ctx context.Context, input *ctdf.ServiceAlert) (*ctdf.ServiceAlert, error) {
	return e.mutateAlert(ctx, func(s *state, now time.Time) (*alertChange, error) {
		return s.createAlert(input, now)
	})
}

func (e *Engine) UpdateServiceAlert(ctx context.Context, id string, update AlertUpdate) (*ctdf.ServiceAlert, error) {
	return e.mutateAlert(ctx, func(s *state, now time.Time) (*alertChange, error) {
		return s.updateAlert(id, update, now)
	})
}

func (e *Engine) DeactivateServiceAlert(ctx context.Context, id string) (*ctdf.ServiceAlert, error) {
	return e.mutateAlert(ctx, func(s *state, now time.Time) (*alertChange, error) {
		return s.deactivateAlert(id, now)
	})
}

func (e *Engine) DeleteServiceAlert(ctx context.Context, id string) error {
	_, err := e.mutateAlert(ctx, func(s *state, now time.Time) (*alertChange, error) {
		return s.deleteAlert(id, now)
	})
	return err
}
