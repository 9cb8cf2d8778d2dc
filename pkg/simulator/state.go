package simulator

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/catalog"
	"github.com/travigo/transitlive/pkg/ctdf"
)

// state holds every table the simulator owns. It is only ever touched from the
// engine's coordinator goroutine, or directly in tests.
type state struct {
	config Config
	random Random

	catalog *catalog.Catalog

	// routeOrder fixes the iteration order so a seeded run is reproducible
	routeOrder []string
	routes     map[string]*ctdf.Route

	vehicles      map[string]*ctdf.Vehicle
	routeVehicles map[string]string

	predictions      map[string]*ctdf.Prediction
	routePredictions map[string][]string

	alerts map[string]*ctdf.ServiceAlert

	initialised bool
}

func newState(config Config, random Random) *state {
	s := &state{
		config: config,
		random: random,
		alerts: map[string]*ctdf.ServiceAlert{},
	}
	s.reset()

	return s
}

func (s *state) reset() {
	s.catalog = &catalog.Catalog{Stops: map[string]*ctdf.Stop{}}
	s.routeOrder = nil
	s.routes = map[string]*ctdf.Route{}
	s.vehicles = map[string]*ctdf.Vehicle{}
	s.routeVehicles = map[string]string{}
	s.predictions = map[string]*ctdf.Prediction{}
	s.routePredictions = map[string][]string{}
	s.initialised = false
}

// tables is a freshly built set of vehicle & prediction tables ready to be swapped in
type tables struct {
	catalog *catalog.Catalog

	routeOrder []string
	routes     map[string]*ctdf.Route

	vehicles      map[string]*ctdf.Vehicle
	routeVehicles map[string]string

	predictions      map[string]*ctdf.Prediction
	routePredictions map[string][]string
}

// buildTables places one vehicle on every route of the catalog and creates a
// prediction for every stop the route serves
func (s *state) buildTables(cat *catalog.Catalog, now time.Time) *tables {
	t := &tables{
		catalog:          cat,
		routes:           map[string]*ctdf.Route{},
		vehicles:         map[string]*ctdf.Vehicle{},
		routeVehicles:    map[string]string{},
		predictions:      map[string]*ctdf.Prediction{},
		routePredictions: map[string][]string{},
	}

	for _, route := range cat.Routes {
		if _, exists := t.routes[route.PrimaryIdentifier]; exists {
			log.Warn().Str("route", route.PrimaryIdentifier).Msg("Duplicate route in catalog, ignoring")
			continue
		}

		totalStops := len(route.Stops)

		startIndex := 0
		if totalStops > 1 {
			startIndex = s.random.IntN(totalStops - 1)
		}

		vehicle := &ctdf.Vehicle{
			PrimaryIdentifier:    fmt.Sprintf("VEH-%s-%d", route.PrimaryIdentifier, s.random.IntN(100)),
			RouteRef:             route.PrimaryIdentifier,
			CurrentStopIndex:     startIndex,
			Direction:            ctdf.VehicleDirectionForward,
			TotalStops:           totalStops,
			ModificationDateTime: now,
		}
		vehicle.VisitedStops = visitedStops(route, vehicle)

		t.routeOrder = append(t.routeOrder, route.PrimaryIdentifier)
		t.routes[route.PrimaryIdentifier] = route
		t.vehicles[vehicle.PrimaryIdentifier] = vehicle
		t.routeVehicles[route.PrimaryIdentifier] = vehicle.PrimaryIdentifier

		for stopIndex, stopID := range route.Stops {
			prediction := &ctdf.Prediction{
				PrimaryIdentifier: ctdf.PredictionIdentifier(route.PrimaryIdentifier, stopID),
				RouteRef:          route.PrimaryIdentifier,
				StopRef:           stopID,
				VehicleRef:        vehicle.PrimaryIdentifier,
				RouteName:         route.Name,
				RouteType:         route.TransportType,
				RouteColour:       route.Colour,
				StopName:          cat.StopName(stopID),
				Status:            ctdf.PredictionStatusOnTime,
				StopIndex:         stopIndex,
				Visited:           vehicle.HasVisited(stopIndex),
				Timestamp:         now,
			}
			prediction.PredictedArrival = s.arrivalFor(vehicle.StopsAway(stopIndex), now)

			// A route serving the same stop twice keeps the first occurrence
			if _, exists := t.predictions[prediction.PrimaryIdentifier]; exists {
				continue
			}

			t.predictions[prediction.PrimaryIdentifier] = prediction
			t.routePredictions[route.PrimaryIdentifier] = append(t.routePredictions[route.PrimaryIdentifier], prediction.PrimaryIdentifier)
		}
	}

	return t
}

func (s *state) swap(t *tables) {
	s.catalog = t.catalog
	s.routeOrder = t.routeOrder
	s.routes = t.routes
	s.vehicles = t.vehicles
	s.routeVehicles = t.routeVehicles
	s.predictions = t.predictions
	s.routePredictions = t.routePredictions
	s.initialised = true
}

func (s *state) initialise(cat *catalog.Catalog, now time.Time) {
	s.swap(s.buildTables(cat, now))
}

// arrivalFor converts the signed stop distance into a predicted arrival time.
// Stops behind the vehicle have no arrival.
func (s *state) arrivalFor(stopsAway int, now time.Time) *time.Time {
	if stopsAway < 0 {
		return nil
	}

	arrival := now.Add(s.config.AtStopArrival)
	if stopsAway > 0 {
		minutes := stopsAway*s.config.MinutesPerStop + s.random.IntN(s.config.ArrivalJitterMinutes)
		arrival = now.Add(time.Duration(minutes) * time.Minute)
	}

	return &arrival
}

func (s *state) vehicleForRoute(routeID string) *ctdf.Vehicle {
	vehicleID, exists := s.routeVehicles[routeID]
	if !exists {
		return nil
	}
	return s.vehicles[vehicleID]
}

func (s *state) predictionsForRoute(routeID string) []*ctdf.Prediction {
	ids := s.routePredictions[routeID]
	predictions := make([]*ctdf.Prediction, 0, len(ids))
	for _, id := range ids {
		if prediction, exists := s.predictions[id]; exists {
			predictions = append(predictions, prediction)
		}
	}
	return predictions
}

func visitedStops(route *ctdf.Route, vehicle *ctdf.Vehicle) []string {
	visited := []string{}
	for stopIndex, stopID := range route.Stops {
		if vehicle.HasVisited(stopIndex) {
			visited = append(visited, stopID)
		}
	}
	return visited
}
