package translate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// PythonBackend runs transformers translation pipelines in a long-lived
// Python subprocess. Requests and responses are newline-delimited JSON.
type PythonBackend struct {
	pythonPath  string
	scriptPath  string
	scriptDir   string
	process     *exec.Cmd
	stdin       io.WriteCloser
	stdout      *bufio.Reader
	mu          sync.Mutex
	logger      *logrus.Logger
	initialized bool
}

// NewPythonBackend creates a new Python-based backend. The subprocess is
// started lazily on first use. An empty scriptPath uses the built-in worker.
func NewPythonBackend(pythonPath, scriptPath string, logger *logrus.Logger) *PythonBackend {
	if logger == nil {
		logger = logrus.New()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	return &PythonBackend{
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		logger:     logger,
	}
}

// workerRequest is one line sent to the worker.
type workerRequest struct {
	Op        string `json:"op"`
	Model     string `json:"model"`
	Device    string `json:"device,omitempty"`
	Text      string `json:"text,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

// workerResponse is one line read back from the worker.
type workerResponse struct {
	Success        bool   `json:"success"`
	TranslatedText string `json:"translated_text,omitempty"`
	Error          string `json:"error,omitempty"`
}

// workerScript is the Python program executed when no script path is configured.
const workerScript = `
import sys
import json
from transformers import pipeline

pipelines = {}

def device_index(device):
    if device.startswith("cuda"):
        parts = device.split(":")
        return int(parts[1]) if len(parts) > 1 else 0
    return -1

def handle(request):
    op = request.get("op")
    model = request.get("model", "")
    if op == "load":
        if model not in pipelines:
            pipelines[model] = pipeline("translation", model=model, device=device_index(request.get("device", "cpu")))
        return {"success": True}
    if op == "translate":
        translator = pipelines.get(model)
        if translator is None:
            translator = pipeline("translation", model=model, device=device_index(request.get("device", "cpu")))
            pipelines[model] = translator
        result = translator(request.get("text", ""), max_length=request.get("max_length", 1024))
        return {"success": True, "translated_text": result[0]["translation_text"]}
    if op == "unload":
        pipelines.pop(model, None)
        return {"success": True}
    raise ValueError("unknown op %s" % op)

for line in sys.stdin:
    try:
        response = handle(json.loads(line.strip()))
    except Exception as e:
        response = {"success": False, "error": str(e)}
    print(json.dumps(response))
    sys.stdout.flush()
`

// ensureScript writes the built-in worker to a temp file if needed.
func (pb *PythonBackend) ensureScript() error {
	if pb.scriptPath != "" {
		return nil
	}
	dir, err := os.MkdirTemp("", "neurotranslate-worker")
	if err != nil {
		return fmt.Errorf("create worker directory: %w", err)
	}
	path := filepath.Join(dir, "translate_worker.py")
	if err := os.WriteFile(path, []byte(workerScript), 0o644); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("write worker script: %w", err)
	}
	pb.scriptDir = dir
	pb.scriptPath = path
	return nil
}

// ensureProcess ensures the Python subprocess is running. Callers hold pb.mu.
func (pb *PythonBackend) ensureProcess() error {
	if pb.initialized {
		return nil
	}

	if err := pb.ensureScript(); err != nil {
		return err
	}

	process := exec.Command(pb.pythonPath, pb.scriptPath)

	stdin, err := process.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := process.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	process.Stderr = os.Stderr

	if err := process.Start(); err != nil {
		return fmt.Errorf("failed to start Python process: %w", err)
	}

	pb.process = process
	pb.stdin = stdin
	pb.stdout = bufio.NewReader(stdout)
	pb.initialized = true
	pb.logger.WithFields(logrus.Fields{
		"python": pb.pythonPath,
		"script": pb.scriptPath,
		"pid":    process.Process.Pid,
	}).Info("Python translator subprocess started")

	return nil
}

// stopProcess kills and reaps the subprocess. pending, if non-nil, is an
// in-flight read that must finish before the process is waited on.
// Callers hold pb.mu.
func (pb *PythonBackend) stopProcess(pending <-chan readResult) {
	if pb.process == nil {
		return
	}
	if pb.stdin != nil {
		pb.stdin.Close()
	}
	if pb.process.Process != nil {
		_ = pb.process.Process.Kill()
	}
	if pending != nil {
		<-pending
	}
	_ = pb.process.Wait()

	pb.process = nil
	pb.stdin = nil
	pb.stdout = nil
	pb.initialized = false
}

type readResult struct {
	line []byte
	err  error
}

// call sends one request and waits for its response. If ctx ends first the
// worker is stopped and the next call starts a new one.
func (pb *PythonBackend) call(ctx context.Context, req workerRequest) (*workerResponse, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := pb.ensureProcess(); err != nil {
		return nil, err
	}

	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := pb.stdin.Write(append(requestJSON, '\n')); err != nil {
		pb.stopProcess(nil)
		return nil, fmt.Errorf("failed to write to stdin: %w", err)
	}

	stdout := pb.stdout
	done := make(chan readResult, 1)
	go func() {
		line, err := stdout.ReadBytes('\n')
		done <- readResult{line: line, err: err}
	}()

	var res readResult
	select {
	case res = <-done:
	case <-ctx.Done():
		pb.logger.WithFields(logrus.Fields{
			"op":    req.Op,
			"model": req.Model,
		}).Warn("Python worker did not answer in time, restarting it")
		pb.stopProcess(done)
		return nil, ctx.Err()
	}
	if res.err != nil {
		pb.stopProcess(nil)
		return nil, fmt.Errorf("failed to read response: %w", res.err)
	}

	var resp workerResponse
	if err := json.Unmarshal(res.line, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !resp.Success {
		errorMsg := resp.Error
		if errorMsg == "" {
			errorMsg = "unknown error"
		}
		return nil, fmt.Errorf("%s", errorMsg)
	}
	return &resp, nil
}

// Load asks the worker to build a transformers pipeline for modelID.
func (pb *PythonBackend) Load(ctx context.Context, modelID, device string) (Pipeline, error) {
	if _, err := pb.call(ctx, workerRequest{Op: "load", Model: modelID, Device: device}); err != nil {
		return nil, err
	}
	return &pythonPipeline{backend: pb, modelID: modelID, device: device}, nil
}

// CheckHealth verifies the Python subprocess can be started.
func (pb *PythonBackend) CheckHealth(ctx context.Context) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.ensureProcess()
}

// Close stops the Python subprocess and removes the built-in worker script.
func (pb *PythonBackend) Close() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.stopProcess(nil)
	if pb.scriptDir != "" {
		if err := os.RemoveAll(pb.scriptDir); err != nil {
			return fmt.Errorf("remove worker directory: %w", err)
		}
		pb.scriptDir = ""
		pb.scriptPath = ""
	}
	return nil
}

// pythonPipeline refers to a pipeline held by the worker process. The worker
// reloads the model on demand, so unloading one handle never breaks another
// handle for the same model.
type pythonPipeline struct {
	backend *PythonBackend
	modelID string
	device  string
}

func (p *pythonPipeline) Translate(ctx context.Context, text string, maxLength int) (string, error) {
	resp, err := p.backend.call(ctx, workerRequest{
		Op:        "translate",
		Model:     p.modelID,
		Device:    p.device,
		Text:      text,
		MaxLength: maxLength,
	})
	if err != nil {
		return "", err
	}
	return resp.TranslatedText, nil
}

// Close unloads the model from the worker.
func (p *pythonPipeline) Close() error {
	_, err := p.backend.call(context.Background(), workerRequest{Op: "unload", Model: p.modelID})
	return err
}
