package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/travigo/transitlive/pkg/ctdf"
	"gopkg.in/yaml.v3"
)

// FileReader loads the catalog from a YAML document, used for local runs without MongoDB
type FileReader struct {
	Path string
}

type fileCatalog struct {
	Stops []struct {
		ID         string              `yaml:"id"`
		Name       string              `yaml:"name"`
		Latitude   float64             `yaml:"latitude"`
		Longitude  float64             `yaml:"longitude"`
		Facilities ctdf.StopFacilities `yaml:"facilities"`
	} `yaml:"stops"`

	Routes []struct {
		ID          string             `yaml:"id"`
		Name        string             `yaml:"name"`
		Type        ctdf.TransportType `yaml:"type"`
		Colour      string             `yaml:"colour"`
		Description string             `yaml:"description"`
		Active      *bool              `yaml:"active"`
		Stops       []string           `yaml:"stops"`
	} `yaml:"routes"`
}

func (r *FileReader) ListActiveRoutesWithStops(ctx context.Context) (*Catalog, error) {
	fileBytes, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	return Parse(fileBytes)
}

func Parse(document []byte) (*Catalog, error) {
	var parsed fileCatalog
	decoder := yaml.NewDecoder(bytes.NewReader(document))
	decoder.KnownFields(true)
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	catalog := &Catalog{
		Stops: map[string]*ctdf.Stop{},
	}

	for _, stop := range parsed.Stops {
		catalog.Stops[stop.ID] = &ctdf.Stop{
			PrimaryIdentifier: stop.ID,
			PrimaryName:       stop.Name,
			Location:          ctdf.NewPointLocation(stop.Latitude, stop.Longitude),
			Facilities:        stop.Facilities,
		}
	}

	for _, route := range parsed.Routes {
		transportType := route.Type
		if !transportType.Valid() {
			transportType = ctdf.TransportTypeUnknown
		}

		catalog.Routes = append(catalog.Routes, &ctdf.Route{
			PrimaryIdentifier: route.ID,
			Name:              route.Name,
			TransportType:     transportType,
			Colour:            route.Colour,
			Description:       route.Description,
			Active:            route.Active == nil || *route.Active,
			Stops:             route.Stops,
		})
	}

	if err := catalog.filterUsable(); err != nil {
		return nil, err
	}

	return catalog, nil
}
