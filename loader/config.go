package loader

import (
	"time"

	"github.com/cyverse/lazyload-common/cache"
	"github.com/cyverse/lazyload-common/types"
	"github.com/cyverse/lazyload-common/utils"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLoadTimeout is the default timeout of a single load attempt
	DefaultLoadTimeout time.Duration = 10 * time.Second
	// DefaultRetryAttempts is the default number of attempts, including the first
	DefaultRetryAttempts int = 3
	// DefaultRetryBaseDelay is the default delay before the first retry
	DefaultRetryBaseDelay time.Duration = 1 * time.Second

	// DefaultBackoffMultiplier is the default growth of retry delays
	DefaultBackoffMultiplier float64 = 2
	// DefaultBackoffMaxDelay is the default cap of retry delays
	DefaultBackoffMaxDelay time.Duration = 10 * time.Second

	// DefaultBatchConcurrency is the default number of loads in a batch chunk
	DefaultBatchConcurrency int = 3
	// DefaultDelayBetweenBatches is the default pause between batch chunks
	DefaultDelayBetweenBatches time.Duration = 100 * time.Millisecond

	// DefaultMetricsNamespace is the default namespace of exported metrics
	DefaultMetricsNamespace string = "lazyload"
)

// LoadConfig is a per-request load configuration
type LoadConfig struct {
	Priority       types.Priority `yaml:"priority,omitempty"`
	Timeout        time.Duration  `yaml:"timeout,omitempty"`
	RetryAttempts  int            `yaml:"retry_attempts,omitempty"`
	RetryBaseDelay time.Duration  `yaml:"retry_base_delay,omitempty"`
}

// NewDefaultLoadConfig creates a default LoadConfig
func NewDefaultLoadConfig() LoadConfig {
	return LoadConfig{
		Priority:       types.PriorityMedium,
		Timeout:        DefaultLoadTimeout,
		RetryAttempts:  DefaultRetryAttempts,
		RetryBaseDelay: DefaultRetryBaseDelay,
	}
}

// FillDefaults returns a copy with unset fields taken from defaults
func (config LoadConfig) FillDefaults(defaults LoadConfig) LoadConfig {
	if !config.Priority.IsValid() {
		config.Priority = defaults.Priority.OrDefault()
	}

	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
		if config.Timeout <= 0 {
			config.Timeout = DefaultLoadTimeout
		}
	}

	if config.RetryAttempts <= 0 {
		config.RetryAttempts = defaults.RetryAttempts
		if config.RetryAttempts <= 0 {
			config.RetryAttempts = DefaultRetryAttempts
		}
	}

	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
		if config.RetryBaseDelay <= 0 {
			config.RetryBaseDelay = DefaultRetryBaseDelay
		}
	}

	return config
}

// CacheConfig is a configuration of the resource cache
type CacheConfig struct {
	MaxEntries    int           `yaml:"max_entries"`
	EvictionRatio float64       `yaml:"eviction_ratio"`
	TTL           time.Duration `yaml:"ttl"`
}

// BackoffConfig is a configuration of retry delays
type BackoffConfig struct {
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"` // 0 disables the cap
	JitterRatio float64       `yaml:"jitter_ratio,omitempty"`
}

// GetPolicy returns BackoffPolicy of the config
func (config BackoffConfig) GetPolicy() utils.BackoffPolicy {
	return utils.BackoffPolicy{
		Multiplier:  config.Multiplier,
		MaxDelay:    config.MaxDelay,
		JitterRatio: config.JitterRatio,
	}
}

// BatchConfig is a default configuration of batch loads
type BatchConfig struct {
	Concurrency         int           `yaml:"concurrency"`
	DelayBetweenBatches time.Duration `yaml:"delay_between_batches"`
}

// LoaderConfig is a configuration of a Loader
type LoaderConfig struct {
	MetricsNamespace string        `yaml:"metrics_namespace"`
	Cache            CacheConfig   `yaml:"cache"`
	Backoff          BackoffConfig `yaml:"backoff"`
	Batch            BatchConfig   `yaml:"batch"`
	DefaultLoad      LoadConfig    `yaml:"default_load"`
}

// NewDefaultLoaderConfig creates a default LoaderConfig
func NewDefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		MetricsNamespace: DefaultMetricsNamespace,
		Cache: CacheConfig{
			MaxEntries:    cache.DefaultMaxEntries,
			EvictionRatio: cache.DefaultEvictionRatio,
			TTL:           cache.DefaultTTL,
		},
		Backoff: BackoffConfig{
			Multiplier:  DefaultBackoffMultiplier,
			MaxDelay:    DefaultBackoffMaxDelay,
			JitterRatio: 0,
		},
		Batch: BatchConfig{
			Concurrency:         DefaultBatchConcurrency,
			DelayBetweenBatches: DefaultDelayBetweenBatches,
		},
		DefaultLoad: NewDefaultLoadConfig(),
	}
}

// NewLoaderConfigFromYAML creates LoaderConfig from YAML, missing fields keep defaults
func NewLoaderConfigFromYAML(yamlBytes []byte) (LoaderConfig, error) {
	config := NewDefaultLoaderConfig()

	err := yaml.Unmarshal(yamlBytes, &config)
	if err != nil {
		return config, xerrors.Errorf("failed to unmarshal YAML to LoaderConfig: %w", err)
	}

	config.DefaultLoad = config.DefaultLoad.FillDefaults(NewDefaultLoadConfig())

	err = config.Validate()
	if err != nil {
		return config, err
	}

	return config, nil
}

// ToYAML returns YAML representation of the config
func (config LoaderConfig) ToYAML() ([]byte, error) {
	yamlBytes, err := yaml.Marshal(config)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal LoaderConfig to YAML: %w", err)
	}
	return yamlBytes, nil
}

// Validate validates field values
func (config LoaderConfig) Validate() error {
	if config.Cache.MaxEntries <= 0 {
		return xerrors.Errorf("cache max entries must be positive, got %d", config.Cache.MaxEntries)
	}

	if config.Cache.EvictionRatio <= 0 || config.Cache.EvictionRatio > 1 {
		return xerrors.Errorf("cache eviction ratio must be in (0, 1], got %f", config.Cache.EvictionRatio)
	}

	if config.Backoff.Multiplier < 1 {
		return xerrors.Errorf("backoff multiplier must not be smaller than 1, got %f", config.Backoff.Multiplier)
	}

	if config.Backoff.MaxDelay < 0 {
		return xerrors.Errorf("backoff max delay must not be negative, got %s", config.Backoff.MaxDelay)
	}

	if config.Backoff.JitterRatio < 0 || config.Backoff.JitterRatio > 1 {
		return xerrors.Errorf("backoff jitter ratio must be in [0, 1], got %f", config.Backoff.JitterRatio)
	}

	if config.Batch.Concurrency <= 0 {
		return xerrors.Errorf("batch concurrency must be positive, got %d", config.Batch.Concurrency)
	}

	if config.Batch.DelayBetweenBatches < 0 {
		return xerrors.Errorf("delay between batches must not be negative, got %s", config.Batch.DelayBetweenBatches)
	}

	if len(config.DefaultLoad.Priority) > 0 && !config.DefaultLoad.Priority.IsValid() {
		return xerrors.Errorf("unknown default priority %q", config.DefaultLoad.Priority)
	}

	return nil
}
