package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/neurotranslate/pkg/translate"
)

func waitForJob(t *testing.T, job *FileJob) JobSnapshot {
	t.Helper()
	var snap JobSnapshot
	require.Eventually(t, func() bool {
		snap = job.Snapshot()
		return snap.Done()
	}, 5*time.Second, 5*time.Millisecond)
	return snap
}

func TestJobQueue_CreateJobWithoutProcessor(t *testing.T) {
	q := NewJobQueue(quietLogger())

	job := q.CreateJob("a.txt", "hello", "en", "ru")
	require.NotNil(t, job)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 1, q.Len())

	status, _, percent := job.GetStatus()
	assert.Equal(t, JobStatusQueued, status)
	assert.Zero(t, percent)
	assert.Equal(t, "hello", job.Text())

	got, err := q.GetJob(job.ID)
	require.NoError(t, err)
	assert.Same(t, job, got)

	_, err = q.GetJob("missing")
	assert.Error(t, err)
}

func TestJobQueue_ProcessesFileJob(t *testing.T) {
	backend := newStubBackend("Helsinki-NLP/opus-mt-en-fr")
	o := newTestOrchestrator(t, backend, nil)

	q := NewJobQueue(quietLogger())
	q.SetProcessor(NewJobProcessor(o, time.Minute, quietLogger()))

	job := q.CreateJob("story.txt", strings.Repeat("b", 1500), "en", "fr")
	snap := waitForJob(t, job)

	assert.Equal(t, JobStatusCompleted, snap.Status)
	assert.Equal(t, int32(100), snap.ProgressPercent)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "[fr:1024]\n[fr:476]", snap.Result.OutputText)
	assert.Equal(t, "translated_story.txt", snap.Result.FileName)
	assert.NotNil(t, snap.StartedAt)
	assert.NotNil(t, snap.CompletedAt)
	assert.Empty(t, job.Text(), "file contents are released once the job finishes")

	res, ok := job.Result()
	assert.True(t, ok)
	assert.Same(t, snap.Result, res)
}

func TestJobQueue_RecordsFailure(t *testing.T) {
	backend := newStubBackend()
	o := newTestOrchestrator(t, backend, nil)

	q := NewJobQueue(quietLogger())
	q.SetProcessor(NewJobProcessor(o, time.Minute, quietLogger()))

	job := q.CreateJob("story.txt", "text", "en", "zh")
	snap := waitForJob(t, job)

	assert.Equal(t, JobStatusFailed, snap.Status)
	assert.Equal(t, KindModelUnavailable, snap.ErrorKind)
	assert.Contains(t, snap.Error, "is not a valid model identifier")
	assert.Nil(t, snap.Result)

	_, ok := job.Result()
	assert.False(t, ok)
}

func TestJobQueue_CleanupOldJobs(t *testing.T) {
	q := NewJobQueue(quietLogger())

	done := q.CreateJob("done.txt", "x", "en", "ru")
	done.SetResult(&TranslationResult{OutputText: "y"})
	old := time.Now().Add(-2 * time.Hour)
	done.CompletedAt = &old

	pending := q.CreateJob("pending.txt", "x", "en", "ru")
	recent := q.CreateJob("recent.txt", "x", "en", "ru")
	recent.SetError(newRequestError(KindTranslationFailed, "boom", nil))

	q.CleanupOldJobs(time.Hour)

	assert.Equal(t, 2, q.Len())
	_, err := q.GetJob(done.ID)
	assert.Error(t, err)
	_, err = q.GetJob(pending.ID)
	assert.NoError(t, err)
	_, err = q.GetJob(recent.ID)
	assert.NoError(t, err)
}

func TestJobQueue_FileJobIgnoresRequestTimeout(t *testing.T) {
	backend := newStubBackend("Helsinki-NLP/opus-mt-en-fr")
	backend.delay = 40 * time.Millisecond

	engine, err := translate.NewEngine(backend, translate.EngineConfig{Logger: quietLogger()})
	require.NoError(t, err)
	// Five chunks take about 200ms, well past the text request timeout.
	o := NewOrchestrator(engine, &stubDetector{}, nil, 100*time.Millisecond, quietLogger())

	q := NewJobQueue(quietLogger())
	q.SetProcessor(NewJobProcessor(o, 10*time.Second, quietLogger()))

	job := q.CreateJob("long.txt", strings.Repeat("c", 5*translate.ChunkSize), "en", "fr")
	snap := waitForJob(t, job)

	require.Equal(t, JobStatusCompleted, snap.Status, snap.Error)
	assert.Equal(t, 4, strings.Count(snap.Result.OutputText, "\n"))
}

func TestJobProcessor_JobTimeoutStillApplies(t *testing.T) {
	backend := newStubBackend("Helsinki-NLP/opus-mt-en-fr")
	backend.delay = 200 * time.Millisecond

	engine, err := translate.NewEngine(backend, translate.EngineConfig{Logger: quietLogger()})
	require.NoError(t, err)
	o := NewOrchestrator(engine, &stubDetector{}, nil, time.Minute, quietLogger())

	q := NewJobQueue(quietLogger())
	q.SetProcessor(NewJobProcessor(o, 50*time.Millisecond, quietLogger()))

	job := q.CreateJob("slow.txt", "text", "en", "fr")
	snap := waitForJob(t, job)

	assert.Equal(t, JobStatusFailed, snap.Status)
	assert.Equal(t, KindTranslationFailed, snap.ErrorKind)
	assert.Contains(t, snap.Error, context.DeadlineExceeded.Error())
}
