package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultHubURL is the default base URL of the HuggingFace model hub.
	DefaultHubURL = "https://huggingface.co"
	// DefaultInferenceURL is the default base URL of the HuggingFace inference API.
	DefaultInferenceURL = "https://api-inference.huggingface.co"
	// DefaultHuggingFaceTimeout is the default timeout for HTTP requests.
	// Cold models can take a while to spin up on the inference API.
	DefaultHuggingFaceTimeout = 2 * time.Minute
)

// HuggingFaceClient implements Backend on top of the HuggingFace hub and
// hosted inference API.
type HuggingFaceClient struct {
	hubURL       string
	inferenceURL string
	token        string
	httpClient   *http.Client
	logger       *logrus.Logger
}

// NewHuggingFaceClient creates a new HuggingFace client.
// Empty URLs fall back to the public endpoints.
func NewHuggingFaceClient(hubURL, inferenceURL, token string, logger *logrus.Logger) *HuggingFaceClient {
	if hubURL == "" {
		hubURL = DefaultHubURL
	}
	if inferenceURL == "" {
		inferenceURL = DefaultInferenceURL
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &HuggingFaceClient{
		hubURL:       strings.TrimRight(hubURL, "/"),
		inferenceURL: strings.TrimRight(inferenceURL, "/"),
		token:        token,
		httpClient: &http.Client{
			Timeout: DefaultHuggingFaceTimeout,
		},
		logger: logger,
	}
}

// inferenceRequest represents a translation request to the inference API.
type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxLength int `json:"max_length,omitempty"`
}

// inferenceResult is one element of the inference API response array.
type inferenceResult struct {
	TranslationText string `json:"translation_text"`
}

// inferenceError is the body returned by the inference API on failure.
type inferenceError struct {
	Error string `json:"error"`
}

// hfPipeline is a handle on a model that exists on the hub.
type hfPipeline struct {
	client  *HuggingFaceClient
	modelID string
}

// Load checks the hub for modelID. The model is considered loadable when the
// hub knows it.
func (c *HuggingFaceClient) Load(ctx context.Context, modelID, device string) (Pipeline, error) {
	url := c.hubURL + "/api/models/" + modelID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create model request: %w", err)
	}
	c.authorize(req)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": url,
		}).Error("Model lookup request failed")
		return nil, fmt.Errorf("look up model %s: %w", modelID, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"model_id":    modelID,
		"device":      device,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Debug("Model lookup completed")

	switch resp.StatusCode {
	case http.StatusOK:
		return &hfPipeline{client: c, modelID: modelID}, nil
	case http.StatusNotFound, http.StatusUnauthorized:
		return nil, fmt.Errorf("%s is not a valid model identifier", modelID)
	default:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}
}

// Translate runs the model through the inference API.
func (p *hfPipeline) Translate(ctx context.Context, text string, maxLength int) (string, error) {
	c := p.client
	c.logger.WithFields(logrus.Fields{
		"model_id":    p.modelID,
		"text_length": len(text),
		"max_length":  maxLength,
	}).Debug("Translating text with HuggingFace")

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(&inferenceRequest{
		Inputs:     text,
		Parameters: inferenceParameters{MaxLength: maxLength},
	}); err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := c.inferenceURL + "/models/" + p.modelID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": url,
		}).Error("Translation request failed")
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(startTime)
	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
	}).Debug("Translation request completed")

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr inferenceError
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("%s", apiErr.Error)
		}
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(bodyBytes),
		}).Error("Translation request returned non-OK status")
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var results []inferenceResult
	if err := json.Unmarshal(bodyBytes, &results); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("empty response from model %s", p.modelID)
	}

	c.logger.WithFields(logrus.Fields{
		"model_id":    p.modelID,
		"duration_ms": duration.Milliseconds(),
	}).Debug("Translation completed successfully")

	return results[0].TranslationText, nil
}

// CheckHealth verifies that the hub is reachable.
func (c *HuggingFaceClient) CheckHealth(ctx context.Context) error {
	c.logger.Debug("Checking HuggingFace hub health")

	url := c.hubURL + "/api/models?limit=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": url,
		}).Error("Health check request failed")
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
		}).Error("Health check returned non-OK status")
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.logger.Debug("HuggingFace hub health check passed")
	return nil
}

func (c *HuggingFaceClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
