package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/neurotranslate/pkg/language"
	"github.com/dasmlab/neurotranslate/pkg/service"
)

// MaxUploadBytes caps the size of an uploaded text file.
const MaxUploadBytes = 10 << 20

//go:embed assets/index.html
var indexHTML []byte

// HealthFunc reports whether the inference backend is reachable.
type HealthFunc func(ctx context.Context) error

// HTTPServer serves the web page, the JSON API, job status and SSE progress.
type HTTPServer struct {
	orchestrator *service.Orchestrator
	jobQueue     *service.JobQueue
	health       HealthFunc
	logger       *logrus.Logger
	addr         string
	pollInterval time.Duration
	router       *gin.Engine
	srv          *http.Server
}

// NewHTTPServer creates the HTTP server. health may be nil.
func NewHTTPServer(orchestrator *service.Orchestrator, jobQueue *service.JobQueue, health HealthFunc, logger *logrus.Logger, addr string) *HTTPServer {
	if logger == nil {
		logger = logrus.New()
	}
	s := &HTTPServer{
		orchestrator: orchestrator,
		jobQueue:     jobQueue,
		health:       health,
		logger:       logger,
		addr:         addr,
		pollInterval: time.Second,
	}
	s.router = s.routes()
	return s
}

// Handler returns the router.
func (s *HTTPServer) Handler() http.Handler { return s.router }

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = MaxUploadBytes

	r.GET("/", s.handleIndex)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.GET("/languages", s.handleLanguages)
	api.POST("/detect", s.handleDetect)
	api.POST("/translate", s.handleTranslate)
	api.POST("/files", s.handleFileUpload)

	jobs := api.Group("/jobs/:id")
	jobs.GET("", s.handleJobStatus)
	jobs.GET("/events", s.handleJobEvents)
	jobs.GET("/download", s.handleJobDownload)

	return r
}

// Start listens on the configured address until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.WithFields(logrus.Fields{
		"addr": s.addr,
	}).Info("Starting HTTP server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// SSE and metrics scrapes are noisy.
		level := logrus.InfoLevel
		if strings.HasSuffix(c.FullPath(), "/events") || c.FullPath() == "/metrics" {
			level = logrus.DebugLevel
		}
		s.logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}).Log(level, "HTTP request")
	}
}

// writeError renders err as {kind, error, detail}.
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	reqErr, ok := service.AsRequestError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(reqErr.HTTPStatus(), gin.H{
		"kind":   reqErr.Kind,
		"error":  reqErr.UserMessage(),
		"detail": reqErr.Detail,
	})
}

func (s *HTTPServer) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *HTTPServer) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *HTTPServer) handleLanguages(c *gin.Context) {
	catalog := s.orchestrator.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"languages": catalog.Entries(),
		"targets":   catalog.Targets(),
	})
}

type detectRequest struct {
	Text string `json:"text"`
}

func (s *HTTPServer) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if req.Text == "" {
		s.writeError(c, &service.RequestError{Kind: service.KindEmptyInput})
		return
	}

	code := s.orchestrator.Detect(req.Text)
	resp := gin.H{"code": code}
	if name, err := s.orchestrator.Catalog().NameFor(code); err == nil && code != language.Unknown {
		resp["name"] = name
	}
	c.JSON(http.StatusOK, resp)
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

func (s *HTTPServer) handleTranslate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	res, err := s.orchestrator.Handle(c.Request.Context(), service.TranslationRequest{
		Text:       req.Text,
		SourceCode: req.Source,
		TargetCode: req.Target,
		Mode:       service.ModeText,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) handleFileUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, &service.RequestError{Kind: service.KindInvalidFile, Detail: "a .txt file is required", Err: err})
		return
	}
	text, err := readTextFile(header)
	if err != nil {
		s.writeError(c, err)
		return
	}

	source := c.PostForm("source")
	if source == "" {
		source = language.Auto
	}
	target := c.PostForm("target")
	if code, err := s.orchestrator.Catalog().Resolve(target); err != nil || code == language.Auto {
		s.writeError(c, &service.RequestError{Kind: service.KindUnknownLanguage, Detail: target, Err: err})
		return
	}
	if _, err := s.orchestrator.Catalog().Resolve(source); err != nil {
		s.writeError(c, &service.RequestError{Kind: service.KindUnknownLanguage, Detail: source, Err: err})
		return
	}

	job := s.jobQueue.CreateJob(filepath.Base(header.Filename), text, source, target)
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":       job.ID,
		"status_url":   "/api/v1/jobs/" + job.ID,
		"events_url":   "/api/v1/jobs/" + job.ID + "/events",
		"download_url": "/api/v1/jobs/" + job.ID + "/download",
	})
}

// readTextFile returns the contents of an uploaded .txt file, which must be
// non-empty UTF-8.
func readTextFile(header *multipart.FileHeader) (string, error) {
	if !strings.EqualFold(filepath.Ext(header.Filename), ".txt") {
		return "", &service.RequestError{Kind: service.KindInvalidFile, Detail: "only .txt files are supported"}
	}
	if header.Size > MaxUploadBytes {
		return "", &service.RequestError{Kind: service.KindInvalidFile, Detail: fmt.Sprintf("file exceeds %d bytes", MaxUploadBytes)}
	}

	f, err := header.Open()
	if err != nil {
		return "", &service.RequestError{Kind: service.KindInvalidFile, Detail: err.Error(), Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return "", &service.RequestError{Kind: service.KindInvalidFile, Detail: err.Error(), Err: err}
	}
	if len(data) == 0 {
		return "", &service.RequestError{Kind: service.KindEmptyInput}
	}
	if !utf8.Valid(data) {
		return "", &service.RequestError{Kind: service.KindInvalidFile, Detail: "file is not valid UTF-8"}
	}
	return string(data), nil
}

func (s *HTTPServer) lookupJob(c *gin.Context) (*service.FileJob, bool) {
	job, err := s.jobQueue.GetJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return job, true
}

func (s *HTTPServer) handleJobStatus(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job.Snapshot())
}

// handleJobEvents streams job snapshots as Server-Sent Events until the job
// finishes or the client disconnects.
func (s *HTTPServer) handleJobEvents(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Status(http.StatusOK)

	last := job.Snapshot()
	s.sendSSEEvent(c, last)
	if last.Done() {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			snap := job.Snapshot()
			if snap.Status == last.Status && snap.ProgressPercent == last.ProgressPercent {
				continue
			}
			s.sendSSEEvent(c, snap)
			last = snap
			if snap.Done() {
				return
			}
		}
	}
}

func (s *HTTPServer) sendSSEEvent(c *gin.Context, snap service.JobSnapshot) {
	c.SSEvent("status", snap)
	c.Writer.Flush()
}

func (s *HTTPServer) handleJobDownload(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}

	res, done := job.Result()
	if !done {
		status, message, _ := job.GetStatus()
		c.JSON(http.StatusConflict, gin.H{
			"status": status,
			"error":  message,
		})
		return
	}

	c.Header("Content-Disposition", contentDisposition(res.FileName))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(res.OutputText))
}

// contentDisposition builds an attachment header for name. Names that are not
// printable ASCII get an RFC 6266 filename* parameter next to an ASCII fallback.
func contentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r >= 0x7f {
			return '_'
		}
		return r
	}, name)

	header := mime.FormatMediaType("attachment", map[string]string{"filename": fallback})
	if fallback == name {
		return header
	}
	// FormatMediaType switches to the filename* form for non-ASCII values.
	extended := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if extended == "" {
		return header
	}
	return header + strings.TrimPrefix(extended, "attachment")
}
