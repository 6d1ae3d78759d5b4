package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/neurotranslate/pkg/language"
	"github.com/dasmlab/neurotranslate/pkg/translate"
)

// MaxTextLength is the character limit for interactive text requests.
const MaxTextLength = 1024

// FileFallbackSource is used for files whose language cannot be detected.
const FileFallbackSource = "en"

// Mode selects how a request's text is translated.
type Mode string

const (
	// ModeText translates a single bounded string.
	ModeText Mode = "text"
	// ModeFile translates unbounded file contents in fixed-size chunks.
	ModeFile Mode = "file"
)

// Engine is the subset of *translate.Engine used by the orchestrator.
type Engine interface {
	GetOrLoad(ctx context.Context, source, target string) (*translate.Handle, error)
	TranslateOne(ctx context.Context, h *translate.Handle, text string, maxLength int) (string, error)
	TranslateChunked(ctx context.Context, h *translate.Handle, text string, progress translate.ProgressFunc) (string, error)
	MaxLength() int
}

// Detector identifies the language of a text, returning language.Unknown on failure.
type Detector interface {
	Detect(text string) string
}

// TranslationRequest is one user request.
type TranslationRequest struct {
	Text       string
	SourceCode string
	TargetCode string
	Mode       Mode
	FileName   string
}

// TranslationResult is a successful translation.
type TranslationResult struct {
	RequestID    string `json:"request_id"`
	OutputText   string `json:"translation"`
	SourceCode   string `json:"source"`
	TargetCode   string `json:"target"`
	DetectedCode string `json:"detected,omitempty"`
	ModelID      string `json:"model_id"`
	Fallback     bool   `json:"fallback"`
	FileName     string `json:"file_name,omitempty"`
}

// Orchestrator runs the per-request pipeline: validate, resolve the source
// language, check the pair, load the model and translate.
type Orchestrator struct {
	engine   Engine
	detector Detector
	catalog  *language.Catalog
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewOrchestrator creates an orchestrator. timeout bounds text requests; a
// zero timeout disables it.
func NewOrchestrator(engine Engine, detector Detector, catalog *language.Catalog, timeout time.Duration, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if catalog == nil {
		catalog = language.DefaultCatalog()
	}
	return &Orchestrator{
		engine:   engine,
		detector: detector,
		catalog:  catalog,
		timeout:  timeout,
		logger:   logger,
	}
}

// Catalog returns the language catalog used for validation.
func (o *Orchestrator) Catalog() *language.Catalog { return o.catalog }

// Detect runs language detection on text.
func (o *Orchestrator) Detect(text string) string {
	code := o.detector.Detect(text)
	translate.RecordDetection(code)
	return code
}

// Handle runs req to completion. Failures are returned as *RequestError.
func (o *Orchestrator) Handle(ctx context.Context, req TranslationRequest) (*TranslationResult, error) {
	return o.HandleWithProgress(ctx, req, nil)
}

// HandleWithProgress is Handle with a progress callback for file requests.
func (o *Orchestrator) HandleWithProgress(ctx context.Context, req TranslationRequest, progress translate.ProgressFunc) (*TranslationResult, error) {
	if req.Mode == "" {
		req.Mode = ModeText
	}
	startTime := time.Now()
	requestID := uuid.New().String()
	logger := o.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"mode":       req.Mode,
	})

	res, err := o.handle(ctx, req, logger, progress)
	result := "ok"
	if reqErr, ok := AsRequestError(err); ok {
		result = string(reqErr.Kind)
		logger.WithError(err).Warn("Translation request failed")
	}
	translate.RecordRequest(string(req.Mode), result, time.Since(startTime))
	if err != nil {
		return nil, err
	}

	res.RequestID = requestID
	logger.WithFields(logrus.Fields{
		"source":      res.SourceCode,
		"target":      res.TargetCode,
		"model_id":    res.ModelID,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Translation request completed")
	return res, nil
}

func (o *Orchestrator) handle(ctx context.Context, req TranslationRequest, logger *logrus.Entry, progress translate.ProgressFunc) (*TranslationResult, error) {
	// VALIDATE
	if req.Text == "" {
		return nil, newRequestError(KindEmptyInput, "", nil)
	}
	if req.Mode == ModeText && utf8.RuneCountInString(req.Text) > MaxTextLength {
		return nil, newRequestError(KindTooLong, "", nil)
	}
	source, target, err := o.validateLanguages(req.SourceCode, req.TargetCode)
	if err != nil {
		return nil, err
	}

	// File requests are bounded by the caller, e.g. the job timeout.
	if o.timeout > 0 && req.Mode == ModeText {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	// RESOLVE_SOURCE
	var detected string
	if source == language.Auto {
		detected = o.Detect(req.Text)
		switch {
		case detected != language.Unknown:
			source = detected
		case req.Mode == ModeFile:
			source = FileFallbackSource
		}
		logger.WithFields(logrus.Fields{
			"detected": detected,
			"source":   source,
		}).Debug("Resolved source language")
	}

	// CHECK_EQUAL
	if source == target {
		return nil, newRequestError(KindSameLanguage, source, nil)
	}

	// LOAD_MODEL
	h, err := o.engine.GetOrLoad(ctx, source, target)
	if err != nil {
		return nil, newRequestError(KindModelUnavailable, errorDetail(err), err)
	}

	// TRANSLATE
	var out string
	if req.Mode == ModeFile {
		out, err = o.engine.TranslateChunked(ctx, h, req.Text, progress)
	} else {
		out, err = o.engine.TranslateOne(ctx, h, req.Text, o.engine.MaxLength())
	}
	if err != nil {
		return nil, newRequestError(KindTranslationFailed, errorDetail(err), err)
	}

	res := &TranslationResult{
		OutputText: out,
		SourceCode: source,
		TargetCode: target,
		ModelID:    h.ModelID(),
		Fallback:   h.Outcome == translate.OutcomeFallback,
	}
	if detected != language.Unknown {
		res.DetectedCode = detected
	}
	if req.Mode == ModeFile {
		res.FileName = TranslatedFileName(req.FileName)
	}
	return res, nil
}

func (o *Orchestrator) validateLanguages(source, target string) (string, string, error) {
	if strings.TrimSpace(source) == "" {
		source = language.Auto
	}
	src, err := o.catalog.Resolve(source)
	if err != nil {
		return "", "", newRequestError(KindUnknownLanguage, source, err)
	}
	tgt, err := o.catalog.Resolve(target)
	if err != nil || tgt == language.Auto {
		return "", "", newRequestError(KindUnknownLanguage, target, err)
	}
	return src, tgt, nil
}

// errorDetail extracts the backend's message from engine errors.
func errorDetail(err error) string {
	var resErr *translate.ResolutionError
	if errors.As(err, &resErr) {
		return resErr.Detail()
	}
	var trErr *translate.TranslationError
	if errors.As(err, &trErr) {
		return trErr.Detail()
	}
	return err.Error()
}

// TranslatedFileName names the downloadable result for an uploaded file.
func TranslatedFileName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == "/" || base == "" {
		base = "file.txt"
	}
	return "translated_" + base
}
