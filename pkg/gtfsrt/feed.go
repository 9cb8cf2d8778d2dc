// Package gtfsrt renders the simulator state as GTFS-Realtime feeds
package gtfsrt

import (
	"errors"
	"fmt"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/simulator"
	"golang.org/x/exp/slices"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const gtfsRealtimeVersion = "2.0"

var ErrUnknownFeed = errors.New("unknown GTFS-RT feed")

type Feed string

const (
	FeedTripUpdates      Feed = "trip-updates"
	FeedVehiclePositions Feed = "vehicle-positions"
	FeedAlerts           Feed = "alerts"
)

func Build(feed Feed, snapshot *simulator.Snapshot) (*gtfs.FeedMessage, error) {
	switch feed {
	case FeedTripUpdates:
		return TripUpdates(snapshot), nil
	case FeedVehiclePositions:
		return VehiclePositions(snapshot), nil
	case FeedAlerts:
		return Alerts(snapshot), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
}

// Render encodes the feed as protobuf, or as JSON for debugging
func Render(message *gtfs.FeedMessage, asJSON bool) ([]byte, error) {
	if asJSON {
		return protojson.MarshalOptions{Multiline: true}.Marshal(message)
	}
	return proto.Marshal(message)
}

func newFeedMessage(snapshot *simulator.Snapshot) *gtfs.FeedMessage {
	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(snapshot.Timestamp.Unix())),
		},
		Entity: []*gtfs.FeedEntity{},
	}
}

func tripDescriptor(vehicle *ctdf.Vehicle) *gtfs.TripDescriptor {
	directionID := uint32(0)
	if vehicle.Direction == ctdf.VehicleDirectionBackward {
		directionID = 1
	}

	return &gtfs.TripDescriptor{
		TripId:      proto.String(vehicle.PrimaryIdentifier),
		RouteId:     proto.String(vehicle.RouteRef),
		DirectionId: proto.Uint32(directionID),
	}
}

// routePredictions groups the snapshot predictions by route in stop order
func routePredictions(snapshot *simulator.Snapshot) map[string][]*ctdf.Prediction {
	grouped := map[string][]*ctdf.Prediction{}
	for _, prediction := range snapshot.Predictions {
		grouped[prediction.RouteRef] = append(grouped[prediction.RouteRef], prediction)
	}

	for _, predictions := range grouped {
		slices.SortFunc(predictions, func(a, b *ctdf.Prediction) int {
			return a.StopIndex - b.StopIndex
		})
	}

	return grouped
}

func TripUpdates(snapshot *simulator.Snapshot) *gtfs.FeedMessage {
	message := newFeedMessage(snapshot)
	predictions := routePredictions(snapshot)

	for _, vehicle := range snapshot.Vehicles {
		tripUpdate := &gtfs.TripUpdate{
			Trip:      tripDescriptor(vehicle),
			Vehicle:   &gtfs.VehicleDescriptor{Id: proto.String(vehicle.PrimaryIdentifier)},
			Timestamp: proto.Uint64(uint64(snapshot.Timestamp.Unix())),
		}

		for _, prediction := range predictions[vehicle.RouteRef] {
			if prediction.Visited || prediction.PredictedArrival == nil {
				continue
			}

			stopTimeUpdate := &gtfs.TripUpdate_StopTimeUpdate{
				StopSequence: proto.Uint32(uint32(prediction.StopIndex)),
				StopId:       proto.String(prediction.StopRef),
			}

			if prediction.Status == ctdf.PredictionStatusCancelled {
				stopTimeUpdate.ScheduleRelationship = gtfs.TripUpdate_StopTimeUpdate_SKIPPED.Enum()
			} else {
				stopTimeUpdate.ScheduleRelationship = gtfs.TripUpdate_StopTimeUpdate_SCHEDULED.Enum()
				stopTimeUpdate.Arrival = &gtfs.TripUpdate_StopTimeEvent{
					Time:  proto.Int64(prediction.PredictedArrival.Unix()),
					Delay: proto.Int32(int32(prediction.DelayMinutes * 60)),
				}
			}

			tripUpdate.StopTimeUpdate = append(tripUpdate.StopTimeUpdate, stopTimeUpdate)
		}

		message.Entity = append(message.Entity, &gtfs.FeedEntity{
			Id:         proto.String(fmt.Sprintf("%s-trip", vehicle.PrimaryIdentifier)),
			TripUpdate: tripUpdate,
		})
	}

	return message
}

func VehiclePositions(snapshot *simulator.Snapshot) *gtfs.FeedMessage {
	message := newFeedMessage(snapshot)

	routes := map[string]*ctdf.Route{}
	for _, route := range snapshot.Routes {
		routes[route.PrimaryIdentifier] = route
	}

	for _, vehicle := range snapshot.Vehicles {
		route := routes[vehicle.RouteRef]
		if route == nil || vehicle.CurrentStopIndex >= len(route.Stops) {
			continue
		}
		stopID := route.Stops[vehicle.CurrentStopIndex]

		position := &gtfs.VehiclePosition{
			Trip: tripDescriptor(vehicle),
			Vehicle: &gtfs.VehicleDescriptor{
				Id:    proto.String(vehicle.PrimaryIdentifier),
				Label: proto.String(route.Name),
			},
			CurrentStopSequence: proto.Uint32(uint32(vehicle.CurrentStopIndex)),
			StopId:              proto.String(stopID),
			CurrentStatus:       gtfs.VehiclePosition_IN_TRANSIT_TO.Enum(),
			Timestamp:           proto.Uint64(uint64(vehicle.ModificationDateTime.Unix())),
		}

		if stop := snapshot.Stops[stopID]; stop != nil && stop.Location != nil {
			position.Position = &gtfs.Position{
				Latitude:  proto.Float32(float32(stop.Location.Latitude())),
				Longitude: proto.Float32(float32(stop.Location.Longitude())),
			}
		}

		message.Entity = append(message.Entity, &gtfs.FeedEntity{
			Id:      proto.String(fmt.Sprintf("%s-position", vehicle.PrimaryIdentifier)),
			Vehicle: position,
		})
	}

	return message
}

func Alerts(snapshot *simulator.Snapshot) *gtfs.FeedMessage {
	message := newFeedMessage(snapshot)

	for _, serviceAlert := range snapshot.ServiceAlerts {
		if !serviceAlert.IsValid(snapshot.Timestamp) {
			continue
		}

		activePeriod := &gtfs.TimeRange{
			Start: proto.Uint64(uint64(serviceAlert.ValidFrom.Unix())),
		}
		if serviceAlert.ValidUntil != nil {
			activePeriod.End = proto.Uint64(uint64(serviceAlert.ValidUntil.Unix()))
		}

		alert := &gtfs.Alert{
			ActivePeriod:    []*gtfs.TimeRange{activePeriod},
			Cause:           alertCause(serviceAlert.AlertType).Enum(),
			Effect:          alertEffect(serviceAlert.AlertType).Enum(),
			HeaderText:      translatedString(serviceAlert.Title),
			DescriptionText: translatedString(serviceAlert.Text),
		}

		for _, routeID := range serviceAlert.AffectedRoutes {
			alert.InformedEntity = append(alert.InformedEntity, &gtfs.EntitySelector{RouteId: proto.String(routeID)})
		}
		for _, stopID := range serviceAlert.AffectedStops {
			alert.InformedEntity = append(alert.InformedEntity, &gtfs.EntitySelector{StopId: proto.String(stopID)})
		}

		message.Entity = append(message.Entity, &gtfs.FeedEntity{
			Id:    proto.String(serviceAlert.PrimaryIdentifier),
			Alert: alert,
		})
	}

	return message
}

func translatedString(text string) *gtfs.TranslatedString {
	return &gtfs.TranslatedString{
		Translation: []*gtfs.TranslatedString_Translation{
			{Text: proto.String(text), Language: proto.String("en")},
		},
	}
}

func alertCause(alertType ctdf.ServiceAlertType) gtfs.Alert_Cause {
	switch alertType {
	case ctdf.ServiceAlertTypeMaintenance:
		return gtfs.Alert_MAINTENANCE
	case ctdf.ServiceAlertTypeDisruption:
		return gtfs.Alert_TECHNICAL_PROBLEM
	case ctdf.ServiceAlertTypeOther:
		return gtfs.Alert_OTHER_CAUSE
	default:
		return gtfs.Alert_UNKNOWN_CAUSE
	}
}

func alertEffect(alertType ctdf.ServiceAlertType) gtfs.Alert_Effect {
	switch alertType {
	case ctdf.ServiceAlertTypeDelay:
		return gtfs.Alert_SIGNIFICANT_DELAYS
	case ctdf.ServiceAlertTypeCancellation:
		return gtfs.Alert_NO_SERVICE
	case ctdf.ServiceAlertTypeMaintenance:
		return gtfs.Alert_MODIFIED_SERVICE
	case ctdf.ServiceAlertTypeDisruption:
		return gtfs.Alert_REDUCED_SERVICE
	default:
		return gtfs.Alert_OTHER_EFFECT
	}
}
