package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transitlive/pkg/ctdf"
)

func TestAdvanceVehicle(t *testing.T) {
	tests := []struct {
		name          string
		index         int
		direction     ctdf.VehicleDirection
		total         int
		wantIndex     int
		wantDirection ctdf.VehicleDirection
		wantMoved     bool
	}{
		{"forward middle", 2, ctdf.VehicleDirectionForward, 5, 3, ctdf.VehicleDirectionForward, true},
		{"forward at end reverses", 4, ctdf.VehicleDirectionForward, 5, 3, ctdf.VehicleDirectionBackward, true},
		{"backward middle", 2, ctdf.VehicleDirectionBackward, 5, 1, ctdf.VehicleDirectionBackward, true},
		{"backward at start reverses", 0, ctdf.VehicleDirectionBackward, 5, 1, ctdf.VehicleDirectionForward, true},
		{"two stop route", 1, ctdf.VehicleDirectionForward, 2, 0, ctdf.VehicleDirectionBackward, true},
		{"single stop route", 0, ctdf.VehicleDirectionForward, 1, 0, ctdf.VehicleDirectionForward, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			vehicle := &ctdf.Vehicle{CurrentStopIndex: test.index, Direction: test.direction, TotalStops: test.total}

			moved := advanceVehicle(vehicle)

			assert.Equal(t, test.wantMoved, moved)
			assert.Equal(t, test.wantIndex, vehicle.CurrentStopIndex)
			assert.Equal(t, test.wantDirection, vehicle.Direction)
		})
	}
}

func TestInitialise(t *testing.T) {
	s := testState(quietRandom())

	require.True(t, s.initialised)
	assert.Len(t, s.vehicles, 2)
	assert.Len(t, s.predictions, 7)
	assert.Equal(t, []string{"M1", "B101"}, s.routeOrder)

	vehicle := s.vehicleForRoute("M1")
	require.NotNil(t, vehicle)
	assert.Equal(t, "VEH-M1-0", vehicle.PrimaryIdentifier)
	assert.Equal(t, 0, vehicle.CurrentStopIndex)
	assert.Equal(t, ctdf.VehicleDirectionForward, vehicle.Direction)
	assert.Equal(t, 5, vehicle.TotalStops)

	prediction := s.predictions["M1_ST003"]
	require.NotNil(t, prediction)
	assert.Equal(t, "VEH-M1-0", prediction.VehicleRef)
	assert.Equal(t, "Metro Line 1", prediction.RouteName)
	assert.Equal(t, "University", prediction.StopName)
	assert.Equal(t, ctdf.TransportTypeMetro, prediction.RouteType)
	assert.Equal(t, 2, prediction.StopIndex)
	assert.Equal(t, ctdf.PredictionStatusOnTime, prediction.Status)
	require.NotNil(t, prediction.PredictedArrival)
	assert.Equal(t, prediction.Timestamp.Add(6*time.Minute), *prediction.PredictedArrival)

	current := s.predictions["M1_ST001"]
	assert.Equal(t, current.Timestamp.Add(30*time.Second), *current.PredictedArrival)
}

func TestTickCountsDown(t *testing.T) {
	s := testState(quietRandom())
	now := time.Date(2026, 3, 2, 9, 0, 3, 0, time.UTC)

	before := *s.predictions["M1_ST003"].PredictedArrival
	batch := s.tick(now)

	assert.Len(t, batch, 7)
	assert.Equal(t, before.Add(-3*time.Second), *s.predictions["M1_ST003"].PredictedArrival)
	assert.Equal(t, 0, s.vehicleForRoute("M1").CurrentStopIndex)

	for _, prediction := range batch {
		assert.Equal(t, now, prediction.Timestamp)
	}
}

func TestTickScenarioMoveForward(t *testing.T) {
	s := testState(quietRandom())
	now := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	vehicle := s.vehicleForRoute("M1")
	vehicle.CurrentStopIndex = 2
	s.predictions["M1_ST003"].PredictedArrival = arrivalAt(now.Add(3 * time.Second))

	s.tick(now)

	assert.Equal(t, 3, vehicle.CurrentStopIndex)
	assert.Equal(t, ctdf.VehicleDirectionForward, vehicle.Direction)
	assert.Equal(t, []string{"ST001", "ST002", "ST003"}, vehicle.VisitedStops)

	for _, prediction := range s.predictionsForRoute("M1") {
		assert.Equal(t, prediction.StopIndex <= 2, prediction.Visited, prediction.StopRef)
		if prediction.StopIndex <= 2 {
			assert.Nil(t, prediction.PredictedArrival, prediction.StopRef)
		}
	}

	assert.Equal(t, now.Add(30*time.Second), *s.predictions["M1_ST004"].PredictedArrival)
	assert.Equal(t, now.Add(3*time.Minute), *s.predictions["M1_ST005"].PredictedArrival)
}

func TestTickScenarioReverseAtEnd(t *testing.T) {
	s := testState(quietRandom())
	now := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	vehicle := s.vehicleForRoute("M1")
	vehicle.CurrentStopIndex = 4
	s.predictions["M1_ST005"].PredictedArrival = arrivalAt(now.Add(-time.Second))

	s.tick(now)

	assert.Equal(t, 3, vehicle.CurrentStopIndex)
	assert.Equal(t, ctdf.VehicleDirectionBackward, vehicle.Direction)
	assert.Equal(t, []string{"ST005"}, vehicle.VisitedStops)

	assert.True(t, s.predictions["M1_ST005"].Visited)
	assert.Nil(t, s.predictions["M1_ST005"].PredictedArrival)
	assert.Equal(t, now.Add(30*time.Second), *s.predictions["M1_ST004"].PredictedArrival)
	assert.Equal(t, now.Add(3*time.Minute), *s.predictions["M1_ST003"].PredictedArrival)
	assert.Equal(t, now.Add(9*time.Minute), *s.predictions["M1_ST001"].PredictedArrival)
}

func TestTickKeepsDelayOnRecompute(t *testing.T) {
	s := testState(quietRandom())
	now := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	s.predictions["M1_ST001"].PredictedArrival = arrivalAt(now)
	delayed := s.predictions["M1_ST003"]
	delayed.Status = ctdf.PredictionStatusDelayed
	delayed.DelayMinutes = 5

	s.tick(now)

	assert.Equal(t, 1, s.vehicleForRoute("M1").CurrentStopIndex)
	assert.Equal(t, now.Add(3*time.Minute+5*time.Minute), *delayed.PredictedArrival)
}

func TestTickSkipsCancelledStop(t *testing.T) {
	s := testState(quietRandom())
	now := time.Date(2026, 3, 2, 9, 0, 3, 0, time.UTC)

	cancelled := s.predictions["M1_ST001"]
	cancelled.Status = ctdf.PredictionStatusCancelled
	frozen := *cancelled.PredictedArrival

	s.tick(now)

	assert.Equal(t, 1, s.vehicleForRoute("M1").CurrentStopIndex)
	assert.Equal(t, frozen, *cancelled.PredictedArrival)
	assert.Equal(t, ctdf.PredictionStatusCancelled, cancelled.Status)
}

func TestTickSingleStopRouteNeverMoves(t *testing.T) {
	cat := testCatalog()
	cat.Routes = append(cat.Routes, &ctdf.Route{PrimaryIdentifier: "S1", Name: "Shuttle", Active: true, Stops: []string{"ST001"}})

	s := newState(DefaultConfig(), quietRandom())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.initialise(cat, now)

	for i := 1; i <= 50; i++ {
		s.tick(now.Add(time.Duration(i) * time.Minute))
	}

	vehicle := s.vehicleForRoute("S1")
	assert.Equal(t, 0, vehicle.CurrentStopIndex)
	assert.Equal(t, ctdf.VehicleDirectionForward, vehicle.Direction)
}

func TestTransitionStatus(t *testing.T) {
	arrival := time.Date(2026, 3, 2, 9, 10, 0, 0, time.UTC)

	t.Run("delay", func(t *testing.T) {
		s := newState(DefaultConfig(), &fakeRandom{floats: []float64{0.0}, intN: func(n int) int { return 3 }})
		prediction := &ctdf.Prediction{Status: ctdf.PredictionStatusOnTime, PredictedArrival: arrivalAt(arrival)}

		s.transitionStatus(prediction)

		assert.Equal(t, ctdf.PredictionStatusDelayed, prediction.Status)
		assert.Equal(t, 5, prediction.DelayMinutes)
		assert.Equal(t, arrival.Add(5*time.Minute), *prediction.PredictedArrival)
	})

	t.Run("cancel", func(t *testing.T) {
		s := newState(DefaultConfig(), &fakeRandom{floats: []float64{0.5, 0.0}})
		prediction := &ctdf.Prediction{Status: ctdf.PredictionStatusOnTime, PredictedArrival: arrivalAt(arrival)}

		s.transitionStatus(prediction)

		assert.Equal(t, ctdf.PredictionStatusCancelled, prediction.Status)
		assert.Equal(t, 0, prediction.DelayMinutes)
		assert.Equal(t, arrival, *prediction.PredictedArrival)
	})

	t.Run("recover", func(t *testing.T) {
		s := newState(DefaultConfig(), &fakeRandom{floats: []float64{0.0}})
		prediction := &ctdf.Prediction{Status: ctdf.PredictionStatusDelayed, DelayMinutes: 4, PredictedArrival: arrivalAt(arrival)}

		s.transitionStatus(prediction)

		assert.Equal(t, ctdf.PredictionStatusOnTime, prediction.Status)
		assert.Equal(t, 0, prediction.DelayMinutes)
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		s := newState(DefaultConfig(), &fakeRandom{float: 0.0})
		prediction := &ctdf.Prediction{Status: ctdf.PredictionStatusCancelled, PredictedArrival: arrivalAt(arrival)}

		s.transitionStatus(prediction)

		assert.Equal(t, ctdf.PredictionStatusCancelled, prediction.Status)
		assert.Equal(t, arrival, *prediction.PredictedArrival)
	})
}

func TestTickDropsOrphanedPredictions(t *testing.T) {
	s := testState(quietRandom())

	delete(s.vehicles, s.routeVehicles["B101"])
	batch := s.tick(time.Date(2026, 3, 2, 9, 0, 3, 0, time.UTC))

	assert.Len(t, batch, 5)
	assert.Len(t, s.predictions, 5)
	assert.Empty(t, s.routePredictions["B101"])
	assert.NotContains(t, s.predictions, "B101_ST005")
}

func TestTickPropertiesHoldOverLongRun(t *testing.T) {
	config := DefaultConfig()
	config.CountdownStep = 2 * time.Minute
	config.DelayProbability = 0.05
	config.CancellationProbability = 0.01
	config.RecoveryProbability = 0.2

	s := newState(config, NewRandom(42))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.initialise(testCatalog(), now)

	frozen := map[string]*time.Time{}
	flips := 0

	for i := 1; i <= 2000; i++ {
		previous := map[string]ctdf.Vehicle{}
		for id, vehicle := range s.vehicles {
			previous[id] = *vehicle
		}

		now = now.Add(3 * time.Second)
		s.tick(now)

		for id, vehicle := range s.vehicles {
			require.GreaterOrEqual(t, vehicle.CurrentStopIndex, 0)
			require.Less(t, vehicle.CurrentStopIndex, vehicle.TotalStops)

			before := previous[id]
			if before.Direction != vehicle.Direction {
				flips++
				atBoundary := before.CurrentStopIndex == 0 || before.CurrentStopIndex == before.TotalStops-1
				require.True(t, atBoundary, "vehicle %s reversed at index %d", id, before.CurrentStopIndex)
			}
		}

		for id, prediction := range s.predictions {
			if prediction.Status != ctdf.PredictionStatusCancelled {
				continue
			}
			require.Equal(t, 0, prediction.DelayMinutes)

			if arrival, seen := frozen[id]; seen {
				require.Equal(t, arrival, prediction.PredictedArrival)
			} else {
				frozen[id] = prediction.PredictedArrival
			}
		}
	}

	assert.Greater(t, flips, 0)
}
