package ctdf

// Route is a catalog record. Stops holds the ordered stop identifiers the route serves.
type Route struct {
	PrimaryIdentifier string `groups:"basic"`

	Name          string        `groups:"basic"`
	TransportType TransportType `groups:"basic"`
	Colour        string        `groups:"basic"`
	Description   string        `groups:"detailed"`

	Active bool `groups:"internal"`

	Stops []string `groups:"detailed"`
}

func (r *Route) StopIndex(stopID string) int {
	for i, stop := range r.Stops {
		if stop == stopID {
			return i
		}
	}
	return -1
}
