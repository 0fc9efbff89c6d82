// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/retrieval"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

// EnvPrefix is prepended to every environment override, e.g.
// VISUALFIN_NETWORKING_LISTEN.
const EnvPrefix = "VISUALFIN"

// Config is the top-level VisualFin configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Retrieval  RetrievalConfig           `mapstructure:"retrieval"`
	Receipts   ReceiptsConfig            `mapstructure:"receipts"`
	Storage    StorageConfig             `mapstructure:"storage"`
}

// NetworkingConfig controls the HTTP listener.
type NetworkingConfig struct {
	Listen         string   `mapstructure:"listen"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// ProviderConfig holds credentials and endpoint for a model provider.
// APIKey may be a keyring://service/key URI.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig picks a "provider/model" ref per capability.
type ModelsConfig struct {
	Extraction string         `mapstructure:"extraction"`
	Advice     string         `mapstructure:"advice"`
	Embedding  string         `mapstructure:"embedding"`
	Failover   FailoverConfig `mapstructure:"failover"`
}

// FailoverConfig lists the refs tried, in order, when a capability's
// default fails. Each list only serves its own capability, so a chat model
// never ends up asked for embeddings.
type FailoverConfig struct {
	Extraction []string `mapstructure:"extraction"`
	Advice     []string `mapstructure:"advice"`
	Embedding  []string `mapstructure:"embedding"`
}

// Chain returns the failover refs for c.
func (f FailoverConfig) Chain(c types.Capability) []string {
	switch c {
	case types.CapabilityExtraction:
		return f.Extraction
	case types.CapabilityAdvice:
		return f.Advice
	case types.CapabilityEmbedding:
		return f.Embedding
	default:
		return nil
	}
}

// Ref returns the configured default ref for c.
func (m ModelsConfig) Ref(c types.Capability) string {
	switch c {
	case types.CapabilityExtraction:
		return m.Extraction
	case types.CapabilityAdvice:
		return m.Advice
	case types.CapabilityEmbedding:
		return m.Embedding
	default:
		return ""
	}
}

// RetrievalConfig tunes similarity search.
type RetrievalConfig struct {
	TopK            int    `mapstructure:"top_k"`
	DimensionPolicy string `mapstructure:"dimension_policy"`
}

// Ranker builds the ranker described by the config. Call after Validate.
func (r RetrievalConfig) Ranker() retrieval.Ranker {
	policy, err := types.ParseDimensionPolicy(r.DimensionPolicy)
	if err != nil {
		policy = types.DimensionsTolerate
	}
	return retrieval.Ranker{TopK: r.TopK, Dimensions: policy}
}

// ReceiptsConfig controls receipt image handling.
type ReceiptsConfig struct {
	MaxSide   int  `mapstructure:"max_side"`
	KeepImage bool `mapstructure:"keep_image"`
}

// StorageConfig selects the storage backend and where it keeps data.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("networking.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("networking.rate_limit_rps", 5.0)
	v.SetDefault("networking.rate_limit_burst", 10)
	v.SetDefault("models.extraction", "google/gemini-2.5-flash")
	v.SetDefault("models.advice", "google/gemini-2.5-flash")
	v.SetDefault("models.embedding", "google/text-embedding-004")
	v.SetDefault("retrieval.top_k", retrieval.DefaultTopK)
	v.SetDefault("retrieval.dimension_policy", string(types.DimensionsTolerate))
	v.SetDefault("receipts.max_side", 1600)
	v.SetDefault("receipts.keep_image", true)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "")
}

// SetupEnv binds VISUALFIN_* environment overrides on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix VISUALFIN_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, vferr.Errorf(vferr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, vferr.Errorf(vferr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, vferr.Errorf(vferr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// ResolveDataDir returns the storage directory with a leading ~ expanded.
// An empty value resolves to ~/.visualfin.
func (c *Config) ResolveDataDir() (string, error) {
	dir := c.Storage.DataDir
	if dir != "" && dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", vferr.Errorf(vferr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	if dir == "" {
		return filepath.Join(home, ".visualfin"), nil
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(dir, "~"), "/")), nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateReceipts()...)
	errs = append(errs, c.validateStorage()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Networking.Listen)
		if err != nil {
			errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
				"config: networking.listen must be a valid host:port address, got %q: %w",
				c.Networking.Listen, err,
			))
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
					"config: networking.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
					"config: networking.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	if c.Networking.RateLimitRPS < 0 {
		errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
			"config: networking.rate_limit_rps must not be negative, got %g",
			c.Networking.RateLimitRPS,
		))
	} else if c.Networking.RateLimitRPS > 0 && c.Networking.RateLimitBurst <= 0 {
		errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
			"config: networking.rate_limit_burst must be positive when rate limiting is enabled, got %d",
			c.Networking.RateLimitBurst,
		))
	}

	for i, origin := range c.Networking.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
				"config: networking.cors_origins[%d] must not be empty", i,
			))
		}
	}

	return errs
}

func (c *Config) validateProviders() []error {
	var errs []error

	for name := range c.Providers {
		if _, err := provider.ParseProviderName(name); err != nil {
			errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
				"config: providers.%s is not a supported provider (want one of %v)",
				name, provider.ProviderNames,
			))
		}
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	for _, capability := range types.Capabilities {
		key := "models." + string(capability)
		ref := c.Models.Ref(capability)
		if ref == "" {
			errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue, "config: %s must not be empty", key))
		} else {
			errs = append(errs, c.validateRef(key, ref)...)
		}

		chain := c.Models.Failover.Chain(capability)
		for i, fref := range chain {
			fkey := "models.failover." + string(capability) + "[" + strconv.Itoa(i) + "]"
			errs = append(errs, c.validateRef(fkey, fref)...)
			if fref == ref || slices.Contains(chain[:i], fref) {
				errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
					"config: %s %q repeats a ref already tried for %s", fkey, fref, capability))
			}
			if name, _ := provider.ParseRef(fref); capability == types.CapabilityEmbedding &&
				name == string(provider.ProviderAnthropic) {
				errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
					"config: %s %q: anthropic has no embedding models", fkey, fref))
			}
		}
	}

	return errs
}

// validateRef checks a "provider/model" ref. Providers are only
// cross-referenced when a providers section exists; a nil map means
// defaults only, which is valid.
func (c *Config) validateRef(key, ref string) []error {
	providerName, model := provider.ParseRef(ref)
	if providerName == "" || model == "" {
		return []error{vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
			"config: %s must be in \"provider/model\" format, got %q", key, ref,
		)}
	}
	if c.Providers != nil {
		if _, ok := c.Providers[providerName]; !ok {
			return []error{vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
				"config: %s %q references provider %q which is not configured",
				key, ref, providerName,
			)}
		}
	}
	return nil
}

func (c *Config) validateRetrieval() []error {
	var errs []error

	if c.Retrieval.TopK < 0 {
		errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
			"config: retrieval.top_k must not be negative, got %d",
			c.Retrieval.TopK,
		))
	}
	if _, err := types.ParseDimensionPolicy(c.Retrieval.DimensionPolicy); err != nil {
		errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
			"config: retrieval.dimension_policy must be one of [tolerate, skip], got %q",
			c.Retrieval.DimensionPolicy,
		))
	}

	return errs
}

func (c *Config) validateReceipts() []error {
	if c.Receipts.MaxSide < 0 {
		return []error{vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
			"config: receipts.max_side must not be negative, got %d",
			c.Receipts.MaxSide,
		)}
	}
	return nil
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}
