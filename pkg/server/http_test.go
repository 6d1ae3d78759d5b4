package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/neurotranslate/pkg/language"
	"github.com/dasmlab/neurotranslate/pkg/service"
	"github.com/dasmlab/neurotranslate/pkg/translate"
)

type fixedDetector string

func (d fixedDetector) Detect(string) string { return string(d) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type testEnv struct {
	server *HTTPServer
	queue  *service.JobQueue
}

func newTestEnv(t *testing.T, health HealthFunc) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := translate.NewEchoBackend(
		"Helsinki-NLP/opus-mt-en-ru",
		"Helsinki-NLP/opus-mt-en-de",
	)
	engine, err := translate.NewEngine(backend, translate.EngineConfig{Name: "echo", Logger: quietLogger()})
	require.NoError(t, err)

	o := service.NewOrchestrator(engine, fixedDetector("en"), language.DefaultCatalog(), 0, quietLogger())
	q := service.NewJobQueue(quietLogger())
	q.SetProcessor(service.NewJobProcessor(o, time.Minute, quietLogger()))

	s := NewHTTPServer(o, q, health, quietLogger(), ":0")
	s.pollInterval = 10 * time.Millisecond
	return &testEnv{server: s, queue: q}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) upload(t *testing.T, fileName string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHTTPServer_Index(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Translate file")
	assert.Contains(t, w.Body.String(), `<pre id="file-output"`)
	assert.Contains(t, w.Body.String(), "job.result.translation")
}

func TestHTTPServer_Health(t *testing.T) {
	env := newTestEnv(t, func(context.Context) error { return nil })
	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	env = newTestEnv(t, func(context.Context) error { return errors.New("hub unreachable") })
	w = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "hub unreachable", decode(t, w)["error"])
}

func TestHTTPServer_Languages(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Languages []language.Entry `json:"languages"`
		Targets   []language.Entry `json:"targets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Languages, 8)
	assert.Len(t, body.Targets, 7)
	assert.Equal(t, language.Auto, body.Languages[0].Code)
}

func TestHTTPServer_Detect(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.postJSON(t, "/api/v1/detect", map[string]string{"text": "Hello there"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "en", body["code"])
	assert.Equal(t, "English", body["name"])

	w = env.postJSON(t, "/api/v1/detect", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPServer_Translate(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.postJSON(t, "/api/v1/translate", map[string]string{
		"text":   "Hello",
		"source": "en",
		"target": "ru",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "[ru] Hello", body["translation"])
	assert.Equal(t, "Helsinki-NLP/opus-mt-en-ru", body["model_id"])
	assert.Equal(t, false, body["fallback"])
}

func TestHTTPServer_TranslateErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		body   map[string]string
		status int
		kind   service.ErrorKind
	}{
		{
			name:   "empty input",
			body:   map[string]string{"text": "", "source": "en", "target": "ru"},
			status: http.StatusBadRequest,
			kind:   service.KindEmptyInput,
		},
		{
			name:   "too long",
			body:   map[string]string{"text": strings.Repeat("x", 1025), "source": "en", "target": "ru"},
			status: http.StatusBadRequest,
			kind:   service.KindTooLong,
		},
		{
			name:   "same language after detection",
			body:   map[string]string{"text": "Hello", "source": "auto", "target": "en"},
			status: http.StatusBadRequest,
			kind:   service.KindSameLanguage,
		},
		{
			name:   "unknown target",
			body:   map[string]string{"text": "Hello", "source": "en", "target": "tlh"},
			status: http.StatusBadRequest,
			kind:   service.KindUnknownLanguage,
		},
		{
			name:   "model unavailable",
			body:   map[string]string{"text": "Hello", "source": "en", "target": "ja"},
			status: http.StatusServiceUnavailable,
			kind:   service.KindModelUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postJSON(t, "/api/v1/translate", tt.body)
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, string(tt.kind), body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/translate", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestHTTPServer_FileTranslation(t *testing.T) {
	env := newTestEnv(t, nil)

	content := strings.Repeat("a", 2500)
	w := env.upload(t, "notes.txt", []byte(content), map[string]string{"target": "de"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	jobID, _ := decode(t, w)["job_id"].(string)
	require.NotEmpty(t, jobID)

	job, err := env.queue.GetJob(jobID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return job.Snapshot().Done() }, 5*time.Second, 5*time.Millisecond)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, "completed", status["status"])
	assert.EqualValues(t, 100, status["progress_percent"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "translated_notes.txt", params["filename"])

	// Source is detected as English; three chunks are joined by newlines.
	want := "[de] " + strings.Repeat("a", 1024) + "\n[de] " + strings.Repeat("a", 1024) + "\n[de] " + strings.Repeat("a", 452)
	assert.Equal(t, want, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/events", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}

func TestHTTPServer_DownloadNonASCIIFileName(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.upload(t, "перевод.txt", []byte("Hello"), map[string]string{"source": "en", "target": "ru"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	jobID, _ := decode(t, w)["job_id"].(string)

	job, err := env.queue.GetJob(jobID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return job.Snapshot().Done() }, 5*time.Second, 5*time.Millisecond)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)

	header := w.Header().Get("Content-Disposition")
	assert.Contains(t, header, "filename=translated________.txt")
	assert.Contains(t, header, "filename*=utf-8''")
	for _, r := range header {
		assert.Less(t, r, rune(0x80), header)
	}

	_, params, err := mime.ParseMediaType(header)
	require.NoError(t, err)
	assert.Equal(t, "translated_перевод.txt", params["filename"])
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="a \"b\".txt"`, contentDisposition(`a "b".txt`))
	assert.Equal(t, "attachment; filename=notes.txt", contentDisposition("notes.txt"))
}

func TestHTTPServer_FileUploadErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		fileName string
		content  []byte
		fields   map[string]string
		kind     service.ErrorKind
	}{
		{name: "not a text file", fileName: "report.pdf", content: []byte("%PDF"), fields: map[string]string{"target": "de"}, kind: service.KindInvalidFile},
		{name: "invalid utf8", fileName: "bad.txt", content: []byte{0xff, 0xfe, 0xfd}, fields: map[string]string{"target": "de"}, kind: service.KindInvalidFile},
		{name: "empty file", fileName: "empty.txt", content: nil, fields: map[string]string{"target": "de"}, kind: service.KindEmptyInput},
		{name: "auto target", fileName: "a.txt", content: []byte("hi"), fields: map[string]string{"target": "auto"}, kind: service.KindUnknownLanguage},
		{name: "missing target", fileName: "a.txt", content: []byte("hi"), fields: nil, kind: service.KindUnknownLanguage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.upload(t, tt.fileName, tt.content, tt.fields)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(tt.kind), decode(t, w)["kind"])
		})
	}
	assert.Zero(t, env.queue.Len())
}

func TestHTTPServer_JobLookup(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// A queue without a processor leaves jobs queued.
	idle := service.NewJobQueue(quietLogger())
	env.server.jobQueue = idle
	job := idle.CreateJob("pending.txt", "text", "en", "de")

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/download", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "queued", decode(t, w)["status"])
}
