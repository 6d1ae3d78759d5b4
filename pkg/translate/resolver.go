package translate

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultModelPrefix names the opus-mt model family.
	DefaultModelPrefix = "Helsinki-NLP/opus-mt-"
	// MultilingualSource is the source segment of many-to-one models.
	MultilingualSource = "mul"
	// FallbackSource is tried when no multilingual model exists for a target.
	FallbackSource = "en"
	// autoSource mirrors language.Auto; the translate package does not import language.
	autoSource = "auto"
)

// Outcome tags how a Resolution was reached.
type Outcome int

const (
	// OutcomePrimary means the first candidate identifier loaded.
	OutcomePrimary Outcome = iota
	// OutcomeFallback means the primary failed and the fallback loaded.
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomePrimary:
		return "primary"
	case OutcomeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// ResolvedModel names the model chosen for a language pair.
type ResolvedModel struct {
	ModelID    string `json:"model_id"`
	SourceCode string `json:"source"`
	TargetCode string `json:"target"`
}

// Attempt records one tried identifier.
type Attempt struct {
	ModelID string
	Err     error
}

// Resolution is the successful result of resolving a language pair.
type Resolution struct {
	Model    ResolvedModel
	Outcome  Outcome
	Pipeline Pipeline
	Attempts []Attempt
}

// Resolver derives model identifiers for language pairs and tries them in order.
type Resolver struct {
	backend Backend
	prefix  string
	device  string
	logger  *logrus.Logger
}

// NewResolver creates a resolver. An empty prefix uses DefaultModelPrefix.
func NewResolver(backend Backend, prefix, device string, logger *logrus.Logger) *Resolver {
	if prefix == "" {
		prefix = DefaultModelPrefix
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		backend: backend,
		prefix:  prefix,
		device:  device,
		logger:  logger,
	}
}

// ModelID returns the identifier for a concrete source/target pair.
func (r *Resolver) ModelID(source, target string) string {
	return r.prefix + source + "-" + target
}

// Candidates returns the identifiers Resolve will try, in order.
func (r *Resolver) Candidates(source, target string) []ResolvedModel {
	if source == autoSource {
		return []ResolvedModel{
			{ModelID: r.ModelID(MultilingualSource, target), SourceCode: MultilingualSource, TargetCode: target},
			{ModelID: r.ModelID(FallbackSource, target), SourceCode: FallbackSource, TargetCode: target},
		}
	}
	return []ResolvedModel{
		{ModelID: r.ModelID(source, target), SourceCode: source, TargetCode: target},
	}
}

// Resolve loads the first candidate identifier that the backend accepts.
// A failed resolution returns a *ResolutionError carrying the last failure.
func (r *Resolver) Resolve(ctx context.Context, source, target string) (*Resolution, error) {
	candidates := r.Candidates(source, target)
	attempts := make([]Attempt, 0, len(candidates))
	attempted := make([]string, 0, len(candidates))

	var lastErr error
	for i, candidate := range candidates {
		startTime := time.Now()
		pipeline, err := r.backend.Load(ctx, candidate.ModelID, r.device)
		attempts = append(attempts, Attempt{ModelID: candidate.ModelID, Err: err})
		attempted = append(attempted, candidate.ModelID)

		fields := logrus.Fields{
			"model_id":    candidate.ModelID,
			"device":      r.device,
			"duration_ms": time.Since(startTime).Milliseconds(),
		}
		if err != nil {
			r.logger.WithError(err).WithFields(fields).Warn("Model identifier could not be loaded")
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			continue
		}

		outcome := OutcomePrimary
		if i > 0 {
			outcome = OutcomeFallback
		}
		fields["outcome"] = outcome.String()
		r.logger.WithFields(fields).Info("Model loaded")

		return &Resolution{
			Model:    candidate,
			Outcome:  outcome,
			Pipeline: pipeline,
			Attempts: attempts,
		}, nil
	}

	return nil, &ResolutionError{
		Source:    source,
		Target:    target,
		Attempted: attempted,
		Err:       lastErr,
	}
}
