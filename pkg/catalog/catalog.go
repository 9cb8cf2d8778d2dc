// Package catalog reads the active routes and their ordered stops from the
// route/stop store. The simulator only reads it when it (re)initializes.
package catalog

import (
	"context"
	"errors"

	"github.com/travigo/transitlive/pkg/ctdf"
)

var ErrEmptyCatalog = errors.New("catalog contains no active routes with stops")

type Catalog struct {
	Routes []*ctdf.Route
	Stops  map[string]*ctdf.Stop
}

type Reader interface {
	ListActiveRoutesWithStops(ctx context.Context) (*Catalog, error)
}

func (c *Catalog) GetRoute(routeID string) *ctdf.Route {
	for _, route := range c.Routes {
		if route.PrimaryIdentifier == routeID {
			return route
		}
	}
	return nil
}

// StopName falls back to the identifier for stops missing from the catalog
func (c *Catalog) StopName(stopID string) string {
	if stop, ok := c.Stops[stopID]; ok && stop.PrimaryName != "" {
		return stop.PrimaryName
	}
	return stopID
}

// filterUsable drops inactive routes and routes without stops, returning ErrEmptyCatalog if nothing is left
func (c *Catalog) filterUsable() error {
	usable := make([]*ctdf.Route, 0, len(c.Routes))
	for _, route := range c.Routes {
		if route.Active && len(route.Stops) > 0 {
			usable = append(usable, route)
		}
	}
	c.Routes = usable

	if len(c.Routes) == 0 {
		return ErrEmptyCatalog
	}
	if c.Stops == nil {
		c.Stops = map[string]*ctdf.Stop{}
	}

	return nil
}
