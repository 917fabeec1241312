package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRunPrintsRecordsBody(t *testing.T) {
	const body = `[{"key":"k1","value":"v1","partition":0,"offset":0,"topic":"t1"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/consumers/cg1/instances/ci1/records" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	t.Setenv("REST_PROXY_URL", srv.URL)

	var out bytes.Buffer
	if err := run(&out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != body+"\n" {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
}

func TestRunConnectionFailureExitsNonZero(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	t.Setenv("REST_PROXY_URL", url)

	var out, stderr bytes.Buffer
	err := run(&out)
	if err == nil {
		t.Fatalf("expected run to fail with nothing listening")
	}
	if out.Len() != 0 {
		t.Fatalf("expected empty stdout, got %q", out.String())
	}

	if code := exitCode(&stderr, err); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "fetch failed: ") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestExitCodeZeroOnSuccess(t *testing.T) {
	var stderr bytes.Buffer
	if code := exitCode(&stderr, nil); code != 0 || stderr.Len() != 0 {
		t.Fatalf("expected silent exit 0, got %d %q", code, stderr.String())
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "-5")

	var out bytes.Buffer
	if err := run(&out); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}
