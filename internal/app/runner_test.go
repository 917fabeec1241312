package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/rest-records-fetcher/internal/config"
	"github.com/samvad-hq/rest-records-fetcher/internal/domain"
	"github.com/samvad-hq/rest-records-fetcher/internal/logger"
	"github.com/samvad-hq/rest-records-fetcher/pkg/publishers"
	"github.com/samvad-hq/rest-records-fetcher/pkg/restproxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordsBody = `[{"key":"k1","value":"v1","partition":0,"offset":0,"topic":"t1"}]`

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		RestProxyURL:           baseURL,
		ConsumerGroup:          "cg1",
		ConsumerInstance:       "ci1",
		AcceptHeader:           restproxy.ContentTypeJSONV2,
		StorageType:            "none",
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
	}
}

// newProxy stands in for a REST proxy and rejects requests without the v2 JSON Accept header.
func newProxy(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		if r.Method != http.MethodGet || r.URL.Path != "/consumers/cg1/instances/ci1/records" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.kafka.json.v2+json" {
			t.Errorf("unexpected Accept header %q", got)
			http.Error(w, "bad accept", http.StatusNotAcceptable)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func runOnce(t *testing.T, cfg *config.Config) (string, error) {
	t.Helper()
	var out bytes.Buffer
	runner, err := NewRunner(context.Background(), cfg, nil, &out)
	require.NoError(t, err)
	defer runner.Close()
	err = runner.Run(context.Background())
	return out.String(), err
}

func TestRunPrintsBodyVerbatim(t *testing.T) {
	srv, calls := newProxy(t, http.StatusOK, recordsBody)

	out, err := runOnce(t, testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, recordsBody+"\n", out)
	assert.Equal(t, 1, *calls)
}

func TestRunEmptyBodyPrintsEmptyLine(t *testing.T) {
	srv, _ := newProxy(t, http.StatusOK, "")

	out, err := runOnce(t, testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "\n", out)
}

func TestRunIsIdempotent(t *testing.T) {
	srv, calls := newProxy(t, http.StatusOK, recordsBody)
	cfg := testConfig(srv.URL)

	first, err := runOnce(t, cfg)
	require.NoError(t, err)
	second, err := runOnce(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, *calls)
}

func TestRunPassesThroughNon2xx(t *testing.T) {
	const body = `{"error_code":40403,"message":"Consumer instance not found."}`
	srv, _ := newProxy(t, http.StatusNotFound, body)

	out, err := runOnce(t, testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, body+"\n", out)
}

func TestRunConnectionFailureWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := runOnce(t, testConfig(url))
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestRunInvalidBaseURLWritesNothing(t *testing.T) {
	out, err := runOnce(t, testConfig("localhost:8082"))
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestRunRecordsHistory(t *testing.T) {
	srv, _ := newProxy(t, http.StatusOK, recordsBody)
	cfg := testConfig(srv.URL)
	cfg.StorageType = "bbolt"
	cfg.BBoltPath = filepath.Join(t.TempDir(), "history.db")

	var out bytes.Buffer
	runner, err := NewRunner(context.Background(), cfg, nil, &out)
	require.NoError(t, err)
	require.NoError(t, runner.Run(context.Background()))

	last, found, err := runner.store.LastBatch()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, recordsBody, string(last.Body))
	assert.Equal(t, http.StatusOK, last.StatusCode)
	assert.Equal(t, "cg1", last.Group)
	require.NoError(t, runner.Close())
}

func TestRunForwardsToConfiguredPublishers(t *testing.T) {
	srv, _ := newProxy(t, http.StatusOK, recordsBody)

	received := make(chan publishers.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt publishers.Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			t.Errorf("decode event: %v", err)
		}
		received <- evt
		w.WriteHeader(http.StatusAccepted)
	}))
	defer hook.Close()

	file := filepath.Join(t.TempDir(), "publishers.yaml")
	require.NoError(t, os.WriteFile(file, []byte("publishers:\n  - id: hook\n    type: http\n    http:\n      url: "+hook.URL+"\n"), 0o644))

	cfg := testConfig(srv.URL)
	cfg.PublishersFile = file

	out, err := runOnce(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, recordsBody+"\n", out)

	select {
	case evt := <-received:
		assert.Equal(t, recordsBody, evt.Body)
		assert.Equal(t, "cg1/ci1", evt.Key())
	default:
		t.Fatalf("publisher did not receive the batch")
	}
}

type stubFetcher struct {
	resp *restproxy.Response
	err  error
}

func (s stubFetcher) FetchRecords(context.Context, restproxy.Endpoint) (*restproxy.Response, error) {
	return s.resp, s.err
}

type stubFanout struct {
	events []publishers.Event
	err    error
}

func (s *stubFanout) Publish(_ context.Context, evt publishers.Event) (int, error) {
	s.events = append(s.events, evt)
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}
func (s *stubFanout) Size() int    { return 1 }
func (s *stubFanout) Close() error { return nil }

type failingStore struct{ err error }

func (f failingStore) Close() error                           { return nil }
func (f failingStore) RecordBatch(domain.Batch) error         { return f.err }
func (f failingStore) LastBatch() (domain.Batch, bool, error) { return domain.Batch{}, false, nil }

func TestRunReportsForwardingFailureAfterPrinting(t *testing.T) {
	var out bytes.Buffer
	fan := &stubFanout{err: errors.New("queue down")}
	runner := &Runner{
		endpoint: restproxy.DefaultEndpoint(),
		fetcher:  stubFetcher{resp: &restproxy.Response{StatusCode: http.StatusOK, Body: []byte("[]")}},
		out:      &out,
		store:    failingStore{err: errors.New("disk full")},
		fanout:   fan,
		log:      logger.NopLogger{},
	}

	err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue down")
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "[]\n", out.String())
	require.Len(t, fan.events, 1)
	assert.Equal(t, "ci1", fan.events[0].Instance)
}

func TestNewRunnerRejectsBadInput(t *testing.T) {
	_, err := NewRunner(context.Background(), nil, nil, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = NewRunner(context.Background(), testConfig("http://localhost:8082"), nil, nil)
	assert.Error(t, err)

	cfg := testConfig("http://localhost:8082")
	cfg.PublishersFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewRunner(context.Background(), cfg, nil, &bytes.Buffer{})
	assert.Error(t, err)
}

type recordingLogger struct {
	logger.NopLogger
	debug map[string]any
}

func (l *recordingLogger) DebugObj(msg, _ string, obj interface{}) {
	if l.debug == nil {
		l.debug = map[string]any{}
	}
	l.debug[msg] = obj
}

type historyStore struct {
	prev     domain.Batch
	recorded []domain.Batch
}

func (h *historyStore) Close() error { return nil }
func (h *historyStore) RecordBatch(b domain.Batch) error {
	h.recorded = append(h.recorded, b)
	return nil
}
func (h *historyStore) LastBatch() (domain.Batch, bool, error) {
	return h.prev, !h.prev.FetchedAt.IsZero(), nil
}

func TestRunLogsPreviousBatchBeforeRecording(t *testing.T) {
	prevAt := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store := &historyStore{prev: domain.Batch{StatusCode: http.StatusOK, Body: []byte("[]"), FetchedAt: prevAt}}
	log := &recordingLogger{}
	runner := &Runner{
		endpoint: restproxy.DefaultEndpoint(),
		fetcher:  stubFetcher{resp: &restproxy.Response{StatusCode: http.StatusOK, Body: []byte(recordsBody)}},
		out:      &bytes.Buffer{},
		store:    store,
		fanout:   publishers.NewFanout(nil),
		log:      log,
	}

	require.NoError(t, runner.Run(context.Background()))

	meta, ok := log.debug["previous batch"].(map[string]any)
	require.True(t, ok, "expected previous batch to be logged")
	assert.Equal(t, prevAt, meta["fetched_at"])
	assert.Equal(t, 2, meta["bytes"])
	require.Len(t, store.recorded, 1)
	assert.Equal(t, recordsBody, string(store.recorded[0].Body))
}
