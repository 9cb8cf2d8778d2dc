package catalog

import (
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/database"
	"github.com/travigo/transitlive/pkg/util"
)

// NewReader picks the catalog source from the environment. TRAVIGO_CATALOG_FILE
// selects a YAML file, otherwise the MongoDB collections are used.
func NewReader() (Reader, error) {
	env := util.GetEnvironmentVariables()

	if path := env["TRAVIGO_CATALOG_FILE"]; path != "" {
		log.Info().Str("path", path).Msg("Using catalog file")
		return &FileReader{Path: path}, nil
	}

	if !database.Connected() {
		if err := database.Connect(); err != nil {
			return nil, err
		}
	}

	return NewMongoReader(), nil
}
