package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// OverlayDuration replaces target with the parsed value of env[key] when it is set and valid
func OverlayDuration(env map[string]string, key string, target *time.Duration) {
	if val := env[key]; val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			*target = parsed
		}
	}
}

func OverlayFloat(env map[string]string, key string, target *float64) {
	if val := env[key]; val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			*target = parsed
		}
	}
}

func OverlayUint(env map[string]string, key string, target *uint64) {
	if val := env[key]; val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 64); err == nil {
			*target = parsed
		}
	}
}
