package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/dasmlab/neurotranslate/pkg/translate"
)

// EnvPrefix is prepended to every environment variable, e.g.
// NEUROTRANSLATE_ENGINE_BACKEND.
const EnvPrefix = "NEUROTRANSLATE"

type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Detection DetectionConfig
	Requests  RequestConfig
	Log       LogConfig
}

type ServerConfig struct {
	GRPCPort int
	HTTPAddr string
	Insecure bool
}

type EngineConfig struct {
	Backend      translate.EngineType
	HubURL       string
	InferenceURL string
	Token        string
	PythonPath   string
	ScriptPath   string
	EchoModels   []string

	Device      string
	ModelPrefix string
	CachePolicy string
	CacheSize   int
	MaxLength   int
}

type DetectionConfig struct {
	Identifier    string
	MinConfidence float64
}

type RequestConfig struct {
	// Timeout bounds one interactive request; zero disables it.
	Timeout time.Duration
	// JobTimeout bounds one file translation job.
	JobTimeout time.Duration
	// JobRetention is how long finished jobs stay downloadable.
	JobRetention time.Duration
}

type LogConfig struct {
	Level logrus.Level
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.insecure", true)

	v.SetDefault("engine.backend", string(translate.EngineHuggingFace))
	v.SetDefault("engine.hub_url", translate.DefaultHubURL)
	v.SetDefault("engine.inference_url", translate.DefaultInferenceURL)
	v.SetDefault("engine.python_path", "python3")
	v.SetDefault("engine.device", translate.DefaultDevice)
	v.SetDefault("engine.model_prefix", translate.DefaultModelPrefix)
	v.SetDefault("engine.cache_policy", translate.CachePolicyLRU)
	v.SetDefault("engine.cache_size", translate.DefaultCacheSize)
	v.SetDefault("engine.max_length", translate.DefaultMaxLength)

	v.SetDefault("detection.identifier", "whatlanggo")
	v.SetDefault("detection.min_confidence", 0.0)

	v.SetDefault("requests.timeout", 2*time.Minute)
	v.SetDefault("requests.job_timeout", 10*time.Minute)
	v.SetDefault("requests.job_retention", time.Hour)

	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// HF_TOKEN is the conventional name used by the HuggingFace tooling.
	_ = v.BindEnv("engine.token", EnvPrefix+"_ENGINE_TOKEN", "HF_TOKEN")
	return v
}

// Load reads the optional config file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	backend, err := translate.ParseEngineType(v.GetString("engine.backend"))
	if err != nil {
		return nil, err
	}
	level, err := logrus.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			GRPCPort: v.GetInt("server.grpc_port"),
			HTTPAddr: v.GetString("server.http_addr"),
			Insecure: v.GetBool("server.insecure"),
		},
		Engine: EngineConfig{
			Backend:      backend,
			HubURL:       v.GetString("engine.hub_url"),
			InferenceURL: v.GetString("engine.inference_url"),
			Token:        v.GetString("engine.token"),
			PythonPath:   v.GetString("engine.python_path"),
			ScriptPath:   v.GetString("engine.script_path"),
			EchoModels:   v.GetStringSlice("engine.echo_models"),
			Device:       v.GetString("engine.device"),
			ModelPrefix:  v.GetString("engine.model_prefix"),
			CachePolicy:  strings.ToLower(v.GetString("engine.cache_policy")),
			CacheSize:    v.GetInt("engine.cache_size"),
			MaxLength:    v.GetInt("engine.max_length"),
		},
		Detection: DetectionConfig{
			Identifier:    v.GetString("detection.identifier"),
			MinConfidence: v.GetFloat64("detection.min_confidence"),
		},
		Requests: RequestConfig{
			Timeout:      v.GetDuration("requests.timeout"),
			JobTimeout:   v.GetDuration("requests.job_timeout"),
			JobRetention: v.GetDuration("requests.job_retention"),
		},
		Log: LogConfig{
			Level: level,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("server.grpc_port out of range: %d", c.Server.GRPCPort))
	}
	switch c.Engine.CachePolicy {
	case translate.CachePolicyLRU:
		if c.Engine.CacheSize <= 0 {
			errs = append(errs, fmt.Errorf("engine.cache_size must be positive, got %d", c.Engine.CacheSize))
		}
	case translate.CachePolicyUnbounded:
	default:
		errs = append(errs, fmt.Errorf("engine.cache_policy must be %q or %q, got %q",
			translate.CachePolicyLRU, translate.CachePolicyUnbounded, c.Engine.CachePolicy))
	}
	if c.Engine.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_length must be positive, got %d", c.Engine.MaxLength))
	}
	if c.Engine.Device == "" {
		errs = append(errs, errors.New("engine.device is required"))
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("detection.min_confidence must be within [0,1], got %v", c.Detection.MinConfidence))
	}
	if c.Requests.Timeout < 0 || c.Requests.JobTimeout < 0 || c.Requests.JobRetention < 0 {
		errs = append(errs, errors.New("request durations must not be negative"))
	}
	return errors.Join(errs...)
}

// BackendConfig converts the engine section for translate.NewBackend.
func (c *Config) BackendConfig(logger *logrus.Logger) translate.BackendConfig {
	return translate.BackendConfig{
		Engine:       c.Engine.Backend,
		HubURL:       c.Engine.HubURL,
		InferenceURL: c.Engine.InferenceURL,
		Token:        c.Engine.Token,
		PythonPath:   c.Engine.PythonPath,
		ScriptPath:   c.Engine.ScriptPath,
		EchoModels:   c.Engine.EchoModels,
		Logger:       logger,
	}
}

// EngineConfig converts the engine section for translate.NewEngine.
func (c *Config) EngineConfig(logger *logrus.Logger) translate.EngineConfig {
	return translate.EngineConfig{
		Name:        string(c.Engine.Backend),
		Device:      c.Engine.Device,
		ModelPrefix: c.Engine.ModelPrefix,
		CachePolicy: c.Engine.CachePolicy,
		CacheSize:   c.Engine.CacheSize,
		MaxLength:   c.Engine.MaxLength,
		Logger:      logger,
	}
}
