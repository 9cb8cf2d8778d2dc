package simulator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/util"
)

// DurationRange is a half open [Min, Max) range sampled at minute granularity
type DurationRange struct {
	Min time.Duration `validate:"gte=0"`
	Max time.Duration `validate:"gtfield=Min"`
}

type Config struct {
	// Position & prediction cadence
	TickInterval time.Duration `validate:"gt=0"`
	// How far every predicted arrival counts down per tick
	CountdownStep time.Duration `validate:"gte=0"`

	MinutesPerStop       int           `validate:"gt=0"`
	ArrivalJitterMinutes int           `validate:"gt=0"`
	AtStopArrival        time.Duration `validate:"gt=0"`

	DelayProbability        float64 `validate:"gte=0,lte=1"`
	CancellationProbability float64 `validate:"gte=0,lte=1"`
	RecoveryProbability     float64 `validate:"gte=0,lte=1"`
	DelayMinutesMin         int     `validate:"gte=0"`
	DelayMinutesMax         int     `validate:"gtefield=DelayMinutesMin"`

	// Alert cadences
	GenerationInterval    time.Duration           `validate:"gt=0"`
	GenerationProbability float64                 `validate:"gte=0,lte=1"`
	ExpiryInterval        time.Duration           `validate:"gt=0"`
	AlertTypes            []ctdf.ServiceAlertType `validate:"min=1"`

	InfoDuration     DurationRange
	WarningDuration  DurationRange
	CriticalDuration DurationRange

	// Seed for the random source, 0 seeds from the clock
	Seed uint64
}

var defaultConfig = Config{
	TickInterval:  3 * time.Second,
	CountdownStep: 3 * time.Second,

	MinutesPerStop:       3,
	ArrivalJitterMinutes: 5,
	AtStopArrival:        30 * time.Second,

	DelayProbability:        0.0015,
	CancellationProbability: 0.0003,
	RecoveryProbability:     0.005,
	DelayMinutesMin:         2,
	DelayMinutesMax:         11,

	GenerationInterval:    2 * time.Minute,
	GenerationProbability: 0.3,
	ExpiryInterval:        30 * time.Second,
	AlertTypes: []ctdf.ServiceAlertType{
		ctdf.ServiceAlertTypeDelay,
		ctdf.ServiceAlertTypeMaintenance,
		ctdf.ServiceAlertTypeDisruption,
	},

	InfoDuration:     DurationRange{Min: 5 * time.Minute, Max: 15 * time.Minute},
	WarningDuration:  DurationRange{Min: 10 * time.Minute, Max: 30 * time.Minute},
	CriticalDuration: DurationRange{Min: 30 * time.Minute, Max: 60 * time.Minute},
}

func DefaultConfig() Config {
	config := defaultConfig
	config.AlertTypes = append([]ctdf.ServiceAlertType{}, defaultConfig.AlertTypes...)
	return config
}

// GetConfig returns the simulator configuration from environment variables or defaults
func GetConfig() (Config, error) {
	config := DefaultConfig()
	env := util.GetEnvironmentVariables()

	util.OverlayDuration(env, "TRAVIGO_SIMULATOR_TICK_INTERVAL", &config.TickInterval)
	config.CountdownStep = config.TickInterval
	util.OverlayDuration(env, "TRAVIGO_SIMULATOR_COUNTDOWN_STEP", &config.CountdownStep)

	util.OverlayFloat(env, "TRAVIGO_SIMULATOR_DELAY_PROBABILITY", &config.DelayProbability)
	util.OverlayFloat(env, "TRAVIGO_SIMULATOR_CANCELLATION_PROBABILITY", &config.CancellationProbability)
	util.OverlayFloat(env, "TRAVIGO_SIMULATOR_RECOVERY_PROBABILITY", &config.RecoveryProbability)

	util.OverlayDuration(env, "TRAVIGO_SIMULATOR_GENERATION_INTERVAL", &config.GenerationInterval)
	util.OverlayFloat(env, "TRAVIGO_SIMULATOR_GENERATION_PROBABILITY", &config.GenerationProbability)
	util.OverlayDuration(env, "TRAVIGO_SIMULATOR_EXPIRY_INTERVAL", &config.ExpiryInterval)

	util.OverlayUint(env, "TRAVIGO_SIMULATOR_SEED", &config.Seed)

	if val := env["TRAVIGO_SIMULATOR_ALERT_TYPES"]; val != "" {
		config.AlertTypes = nil
		for _, alertType := range strings.Split(val, ",") {
			config.AlertTypes = append(config.AlertTypes, ctdf.ServiceAlertType(strings.TrimSpace(alertType)))
		}
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid simulator config: %w", err)
	}

	for _, alertType := range c.AlertTypes {
		if !alertType.Valid() {
			return fmt.Errorf("invalid simulator config: unknown alert type %q", alertType)
		}
	}

	return nil
}

func (c Config) durationRange(severity ctdf.ServiceAlertSeverity) DurationRange {
	switch severity {
	case ctdf.ServiceAlertSeverityCritical:
		return c.CriticalDuration
	case ctdf.ServiceAlertSeverityWarning:
		return c.WarningDuration
	default:
		return c.InfoDuration
	}
}
