package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultJobTimeout bounds a single file translation.
const DefaultJobTimeout = 10 * time.Minute

// JobProcessor processes file translation jobs asynchronously.
type JobProcessor struct {
	orchestrator *Orchestrator
	logger       *logrus.Logger
	timeout      time.Duration
}

// NewJobProcessor creates a new job processor.
func NewJobProcessor(orchestrator *Orchestrator, timeout time.Duration, logger *logrus.Logger) *JobProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &JobProcessor{
		orchestrator: orchestrator,
		logger:       logger,
		timeout:      timeout,
	}
}

// ProcessJob translates a job's file contents and records the outcome on the job.
func (p *JobProcessor) ProcessJob(job *FileJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	startTime := time.Now()

	p.logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"file_name": job.FileName,
	}).Info("Starting file translation job")

	job.UpdateStatus(JobStatusProcessing, "Loading translation model...")

	// 0-5% is model loading, 5-100% is chunk translation.
	progress := func(done, total int) {
		percent := 5 + int32(float64(done)/float64(total)*95)
		job.UpdateProgress(percent, fmt.Sprintf("Translated chunk %d/%d", done, total))
	}

	res, err := p.orchestrator.HandleWithProgress(ctx, TranslationRequest{
		Text:       job.Text(),
		SourceCode: job.SourceCode,
		TargetCode: job.TargetCode,
		Mode:       ModeFile,
		FileName:   job.FileName,
	}, progress)
	if err != nil {
		reqErr, ok := AsRequestError(err)
		if !ok {
			reqErr = newRequestError(KindTranslationFailed, err.Error(), err)
		}
		p.logger.WithError(err).WithFields(logrus.Fields{
			"job_id": job.ID,
		}).Error("File translation job failed")
		job.SetError(reqErr)
		return
	}

	job.SetResult(res)

	p.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"file_name":   res.FileName,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("File translation job completed successfully")
}
