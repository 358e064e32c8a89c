package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod time.Duration `envconfig:"LOOP_PERIOD" default:"30s"`
	BatchLimit int           `envconfig:"BATCH_LIMIT" default:"50"`
	// TargetVenue is the whitelisted venue the loop routes every due
	// slice through.
	TargetVenue string `envconfig:"TARGET_VENUE" default:""`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
