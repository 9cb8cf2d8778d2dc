package ctdf

type Stop struct {
	PrimaryIdentifier string `groups:"basic"`

	PrimaryName string `groups:"basic"`

	Location *Location `groups:"basic"`

	Facilities StopFacilities `groups:"detailed"`
}

type StopFacilities struct {
	Wheelchair      bool `groups:"detailed" yaml:"wheelchair"`
	Shelter         bool `groups:"detailed" yaml:"shelter"`
	RealTimeDisplay bool `groups:"detailed" yaml:"realtimedisplay"`
}
