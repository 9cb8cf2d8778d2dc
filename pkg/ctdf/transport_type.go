package ctdf

type TransportType string

const (
	TransportTypeBus     TransportType = "bus"
	TransportTypeMetro   TransportType = "metro"
	TransportTypeTram    TransportType = "tram"
	TransportTypeTrain   TransportType = "train"
	TransportTypeUnknown TransportType = "unknown"
)

func (t TransportType) Valid() bool {
	switch t {
	case TransportTypeBus, TransportTypeMetro, TransportTypeTram, TransportTypeTrain:
		return true
	}
	return false
}
