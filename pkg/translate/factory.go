package translate

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// EngineType represents the type of inference backend to use.
type EngineType string

const (
	// EngineHuggingFace calls the HuggingFace hub and inference API over HTTP.
	EngineHuggingFace EngineType = "huggingface"
	// EnginePython runs transformers pipelines in a local Python subprocess.
	EnginePython EngineType = "python"
	// EngineEcho is an in-process backend for development and tests.
	EngineEcho EngineType = "echo"
)

// BackendConfig holds configuration for creating a Backend instance.
type BackendConfig struct {
	// Engine specifies which inference backend to use.
	Engine EngineType
	// HubURL is the base URL of the model hub used to check model identifiers.
	HubURL string
	// InferenceURL is the base URL of the hosted inference API.
	InferenceURL string
	// Token is an optional bearer token for the HuggingFace APIs.
	Token string
	// PythonPath and ScriptPath configure the python engine.
	PythonPath string
	ScriptPath string
	// EchoModels lists the model identifiers the echo engine can load.
	// Empty means every identifier loads.
	EchoModels []string
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// NewBackend creates a new Backend instance based on the configuration.
func NewBackend(cfg BackendConfig) (Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	cfg.Logger.WithFields(logrus.Fields{
		"engine":        cfg.Engine,
		"hub_url":       cfg.HubURL,
		"inference_url": cfg.InferenceURL,
	}).Info("Creating inference backend")

	switch cfg.Engine {
	case EngineHuggingFace:
		return NewHuggingFaceClient(cfg.HubURL, cfg.InferenceURL, cfg.Token, cfg.Logger), nil
	case EnginePython:
		return NewPythonBackend(cfg.PythonPath, cfg.ScriptPath, cfg.Logger), nil
	case EngineEcho:
		return NewEchoBackend(cfg.EchoModels...), nil
	default:
		cfg.Logger.WithFields(logrus.Fields{
			"engine": cfg.Engine,
		}).Error("Unknown inference engine")
		return nil, fmt.Errorf("unknown inference engine: %s", cfg.Engine)
	}
}

// ParseEngineType parses a string into an EngineType.
// Returns an error if the string is not a valid engine type.
func ParseEngineType(s string) (EngineType, error) {
	switch strings.ToLower(s) {
	case "huggingface", "hf":
		return EngineHuggingFace, nil
	case "python", "transformers":
		return EnginePython, nil
	case "echo":
		return EngineEcho, nil
	default:
		return "", fmt.Errorf("unknown engine type: %s (supported: huggingface, python, echo)", s)
	}
}
