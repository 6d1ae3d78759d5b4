package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FileJobStatus represents the status of a file translation job.
type FileJobStatus string

const (
	JobStatusQueued     FileJobStatus = "queued"
	JobStatusProcessing FileJobStatus = "processing"
	JobStatusCompleted  FileJobStatus = "completed"
	JobStatusFailed     FileJobStatus = "failed"
)

// FileJob represents an asynchronous file translation.
type FileJob struct {
	ID          string
	FileName    string
	SourceCode  string
	TargetCode  string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Request data, released once the job finishes.
	text string

	status          FileJobStatus
	result          *TranslationResult
	err             *RequestError
	progressPercent int32
	progressMessage string

	mu sync.RWMutex
}

// JobSnapshot is a consistent, read-only view of a job.
type JobSnapshot struct {
	ID              string             `json:"job_id"`
	FileName        string             `json:"file_name"`
	Status          FileJobStatus      `json:"status"`
	ProgressPercent int32              `json:"progress_percent"`
	ProgressMessage string             `json:"progress_message"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Result          *TranslationResult `json:"result,omitempty"`
	ErrorKind       ErrorKind          `json:"error_kind,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// JobQueue manages asynchronous file translation jobs.
type JobQueue struct {
	jobs      map[string]*FileJob
	jobsMu    sync.RWMutex
	logger    *logrus.Logger
	processor *JobProcessor
}

// NewJobQueue creates a new job queue.
func NewJobQueue(logger *logrus.Logger) *JobQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &JobQueue{
		jobs:   make(map[string]*FileJob),
		logger: logger,
	}
}

// SetProcessor sets the job processor for this queue.
func (q *JobQueue) SetProcessor(processor *JobProcessor) {
	q.processor = processor
}

// CreateJob registers a file translation and starts processing it.
func (q *JobQueue) CreateJob(fileName, text, source, target string) *FileJob {
	job := &FileJob{
		ID:         uuid.New().String(),
		FileName:   fileName,
		SourceCode: source,
		TargetCode: target,
		CreatedAt:  time.Now(),
		text:       text,
		status:     JobStatusQueued,
	}

	q.jobsMu.Lock()
	q.jobs[job.ID] = job
	q.jobsMu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"file_name": fileName,
		"target":    target,
	}).Info("Created file translation job")

	if q.processor != nil {
		go q.processor.ProcessJob(job)
	}

	return job
}

// GetJob retrieves a job by ID.
func (q *JobQueue) GetJob(jobID string) (*FileJob, error) {
	q.jobsMu.RLock()
	defer q.jobsMu.RUnlock()

	job, exists := q.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	return job, nil
}

// Len returns the number of tracked jobs.
func (q *JobQueue) Len() int {
	q.jobsMu.RLock()
	defer q.jobsMu.RUnlock()
	return len(q.jobs)
}

// UpdateStatus updates the status of a job.
func (j *FileJob) UpdateStatus(status FileJobStatus, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = status
	j.progressMessage = message

	now := time.Now()
	switch status {
	case JobStatusProcessing:
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
	case JobStatusCompleted, JobStatusFailed:
		if j.CompletedAt == nil {
			j.CompletedAt = &now
		}
	}
}

// UpdateProgress updates the progress of a job.
func (j *FileJob) UpdateProgress(percent int32, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.progressPercent = percent
	j.progressMessage = message
}

// SetError marks the job failed.
func (j *FileJob) SetError(err *RequestError) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err
	j.status = JobStatusFailed
	j.progressMessage = err.UserMessage()
	j.text = ""
	now := time.Now()
	j.CompletedAt = &now
}

// SetResult marks the job completed.
func (j *FileJob) SetResult(res *TranslationResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.result = res
	j.status = JobStatusCompleted
	j.progressPercent = 100
	j.progressMessage = "Translation completed"
	j.text = ""
	now := time.Now()
	j.CompletedAt = &now
}

// Text returns the file contents awaiting translation.
func (j *FileJob) Text() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.text
}

// GetStatus returns the job status, message and progress.
func (j *FileJob) GetStatus() (FileJobStatus, string, int32) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.status, j.progressMessage, j.progressPercent
}

// Result returns the translation once the job completed.
func (j *FileJob) Result() (*TranslationResult, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.status == JobStatusCompleted
}

// Snapshot returns a consistent copy of the job state.
func (j *FileJob) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := JobSnapshot{
		ID:              j.ID,
		FileName:        j.FileName,
		Status:          j.status,
		ProgressPercent: j.progressPercent,
		ProgressMessage: j.progressMessage,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		Result:          j.result,
	}
	if j.err != nil {
		s.ErrorKind = j.err.Kind
		s.Error = j.err.UserMessage()
	}
	return s
}

// Done reports whether the job reached a terminal state.
func (s JobSnapshot) Done() bool {
	return s.Status == JobStatusCompleted || s.Status == JobStatusFailed
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (q *JobQueue) CleanupOldJobs(maxAge time.Duration) {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()

	now := time.Now()
	removed := 0

	for id, job := range q.jobs {
		s := job.Snapshot()
		if s.Done() && s.CompletedAt != nil && now.Sub(*s.CompletedAt) > maxAge {
			delete(q.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		q.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(q.jobs),
		}).Info("Cleaned up old translation jobs")
	}
}
