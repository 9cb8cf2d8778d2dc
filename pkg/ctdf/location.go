package ctdf

// Location is a GeoJSON point, Coordinates are [longitude, latitude]
type Location struct {
	Type        string    `json:"-" groups:"basic"`
	Coordinates []float64 `json:"coordinates" groups:"basic"`
}

func NewPointLocation(latitude float64, longitude float64) *Location {
	return &Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
	}
}

func (l *Location) Longitude() float64 {
	if l == nil || len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[0]
}

func (l *Location) Latitude() float64 {
	if l == nil || len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[1]
}
