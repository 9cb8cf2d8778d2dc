package simulator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/travigo/transitlive/pkg/catalog"
	"github.com/travigo/transitlive/pkg/ctdf"
)

// fakeRandom hands out scripted floats first, then a fixed float. IntN defers to intN or returns 0.
type fakeRandom struct {
	floats []float64
	float  float64
	intN   func(n int) int
}

func (r *fakeRandom) Float64() float64 {
	if len(r.floats) > 0 {
		f := r.floats[0]
		r.floats = r.floats[1:]
		return f
	}
	return r.float
}

func (r *fakeRandom) IntN(n int) int {
	if r.intN != nil {
		return r.intN(n)
	}
	return 0
}

// quietRandom never triggers a probabilistic transition
func quietRandom() *fakeRandom {
	return &fakeRandom{float: 0.99}
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Routes: []*ctdf.Route{
			{
				PrimaryIdentifier: "M1",
				Name:              "Metro Line 1",
				TransportType:     ctdf.TransportTypeMetro,
				Colour:            "#E53E3E",
				Active:            true,
				Stops:             []string{"ST001", "ST002", "ST003", "ST004", "ST005"},
			},
			{
				PrimaryIdentifier: "B101",
				Name:              "Bus Route 101",
				TransportType:     ctdf.TransportTypeBus,
				Colour:            "#38A169",
				Active:            true,
				Stops:             []string{"ST005", "ST006"},
			},
		},
		Stops: map[string]*ctdf.Stop{
			"ST001": {PrimaryIdentifier: "ST001", PrimaryName: "Central Station"},
			"ST002": {PrimaryIdentifier: "ST002", PrimaryName: "Market Square"},
			"ST003": {PrimaryIdentifier: "ST003", PrimaryName: "University"},
			"ST004": {PrimaryIdentifier: "ST004", PrimaryName: "Hospital"},
			"ST005": {PrimaryIdentifier: "ST005", PrimaryName: "Airport Terminal"},
			"ST006": {PrimaryIdentifier: "ST006", PrimaryName: "Shopping Mall"},
		},
	}
}

func testState(random Random) *state {
	s := newState(DefaultConfig(), random)
	s.initialise(testCatalog(), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return s
}

func arrivalAt(t time.Time) *time.Time {
	return &t
}

type fakeReader struct {
	mutex   sync.Mutex
	catalog *catalog.Catalog
	err     error
	calls   atomic.Int32
}

func (r *fakeReader) ListActiveRoutesWithStops(ctx context.Context) (*catalog.Catalog, error) {
	r.calls.Add(1)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	return r.catalog, nil
}

func (r *fakeReader) setError(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.err = err
}

type publishedAlert struct {
	action ctdf.ServiceAlertAction
	alert  *ctdf.ServiceAlert
}

type recordingPublisher struct {
	mutex    sync.Mutex
	arrivals [][]*ctdf.Prediction
	alerts   []publishedAlert
}

func (p *recordingPublisher) PublishArrivals(timestamp time.Time, predictions []*ctdf.Prediction) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.arrivals = append(p.arrivals, predictions)
}

func (p *recordingPublisher) PublishServiceAlert(timestamp time.Time, action ctdf.ServiceAlertAction, serviceAlert *ctdf.ServiceAlert) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.alerts = append(p.alerts, publishedAlert{action: action, alert: serviceAlert})
}

func (p *recordingPublisher) arrivalBatches() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.arrivals)
}

func (p *recordingPublisher) alertActions() []ctdf.ServiceAlertAction {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	actions := []ctdf.ServiceAlertAction{}
	for _, published := range p.alerts {
		actions = append(actions, published.action)
	}
	return actions
}

func (p *recordingPublisher) published(action ctdf.ServiceAlertAction, alertID string) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	count := 0
	for _, published := range p.alerts {
		if published.action == action && published.alert.PrimaryIdentifier == alertID {
			count++
		}
	}
	return count
}
