package config

// ObservabilityConfig controls metrics emission.
type ObservabilityConfig struct {
	// StatsDEnabled turns on metric emission.
	StatsDEnabled bool `env:"STATSD_ENABLED" envDefault:"false"`
	// StatsDAddress is the UDP host:port of the StatsD endpoint.
	StatsDAddress string `env:"STATSD_ADDRESS" envDefault:"localhost:8125"`
	// StatsDPrefix is prepended to every metric name.
	StatsDPrefix string `env:"STATSD_PREFIX" envDefault:"portal"`
}
