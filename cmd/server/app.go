package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/neurotranslate/pkg/config"
	"github.com/dasmlab/neurotranslate/pkg/language"
	"github.com/dasmlab/neurotranslate/pkg/service"
	"github.com/dasmlab/neurotranslate/pkg/translate"
)

// app holds the components shared by every command.
type app struct {
	cfg          *config.Config
	logger       *logrus.Logger
	backend      translate.Backend
	engine       *translate.Engine
	orchestrator *service.Orchestrator
}

func newApp(cfg *config.Config, logger *logrus.Logger) (*app, error) {
	catalog := language.DefaultCatalog()

	backend, err := translate.NewBackend(cfg.BackendConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create inference backend: %w", err)
	}

	engine, err := translate.NewEngine(backend, cfg.EngineConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create translation engine: %w", err)
	}

	identifier, err := language.NewIdentifier(cfg.Detection.Identifier, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to create language identifier: %w", err)
	}
	detector := language.NewDetector(identifier, catalog, cfg.Detection.MinConfidence, logger)

	return &app{
		cfg:          cfg,
		logger:       logger,
		backend:      backend,
		engine:       engine,
		orchestrator: service.NewOrchestrator(engine, detector, catalog, cfg.Requests.Timeout, logger),
	}, nil
}

// Close releases cached models and any backend process.
func (a *app) Close() {
	a.engine.Purge()
	if closer, ok := a.backend.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close inference backend")
		}
	}
}
