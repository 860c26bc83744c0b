package pubsubhttp

import "time"

// Config needs to be created with NewConfig() and filled in with config as
// applicable for the intended setup, then provided in the call to
// NewProducer() or NewSubscriber(). ProjectID is required, as is Topic
// for NewProducer and Subscription for NewSubscriber; the other fields
// are optional and zero values fall back to package defaults.
type Config struct {
	// Host and Port address the Pub/Sub REST endpoint. Port 443 selects
	// HTTPS; any other port selects HTTP (this is what makes pointing at
	// a local emulator on a plain HTTP port work).
	Host string
	Port int

	// IsEmulator disables token acquisition entirely: no token provider
	// is constructed and outgoing requests carry no Authorization header.
	IsEmulator bool

	// ProjectID, Topic, Subscription identify the resource this Config
	// is used to open. Topic is used by NewProducer, Subscription by
	// NewSubscriber.
	ProjectID    string
	Topic        string
	Subscription string

	Auth     AuthConfig
	Consumer ConsumerConfig
}

// AuthConfig configures the token provider backing an authorizer, unused
// when IsEmulator is set.
type AuthConfig struct {
	// ServiceAccountJSON is the raw contents of a GCP service account
	// key file. If empty, the instance metadata endpoint is used
	// instead (suitable when running on GCE/GKE with a default service
	// account attached).
	ServiceAccountJSON []byte

	// SafetyPeriod is how far ahead of expiry the cached token provider
	// refreshes. Defaults to auth.DefaultSafetyPeriod.
	SafetyPeriod time.Duration

	// RetryDelay, RetryNextDelay, RetryMaxAttempts configure the retry
	// loop the refreshable value runs on refresh failure.
	RetryDelay       time.Duration
	RetryNextDelay   func(prev time.Duration) time.Duration
	RetryMaxAttempts int

	OnRefreshSuccess   func()
	OnRefreshError     func(err error)
	OnRetriesExhausted func(err error)
}

// ConsumerConfig configures a Subscriber. Unused by NewProducer.
type ConsumerConfig struct {
	ReadMaxMessages         int
	ReadReturnImmediately   bool
	ReadConcurrency         int
	AcknowledgeBatchSize    int
	AcknowledgeBatchLatency time.Duration
	OnError                 func(err error)
}

const (
	defaultHost = "pubsub.googleapis.com"
	defaultPort = 443
)

// NewConfig returns an initialized Config with ambient defaults applied.
// Resource-specific fields (ProjectID, Topic/Subscription) must still be
// set by the caller before use.
func NewConfig() *Config {
	c := &Config{
		Host: defaultHost,
		Port: defaultPort,
	}
	return c
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
}
