package engine

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Seed values for the engine params row; ignored once seeded.
	MinIntervalSeconds int64  `envconfig:"MIN_INTERVAL_SECONDS" default:"60"`
	FeeBps             int64  `envconfig:"FEE_BPS" default:"50"`
	FeeRecipient       string `envconfig:"FEE_RECIPIENT" default:"protocol-fees"`
	MaxSlices          uint   `envconfig:"MAX_SLICES" default:"0"`

	VenueTimeout time.Duration `envconfig:"VENUE_TIMEOUT" default:"30s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
