package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	fail := Checker{Name: "x", Check: func(context.Context) error { return errors.New("down") }}

	code, body := get(t, New(fail), "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("healthz = %d %q, want 200 ok", code, body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	ok := Checker{Name: "tracks", Check: func(context.Context) error { return nil }}
	bad := Checker{Name: "llm", Check: func(context.Context) error { return errors.New("no api key") }}

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all pass",
			checkers:   []Checker{ok},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"tracks": "ok"},
		},
		{
			name:       "one fails",
			checkers:   []Checker{ok, bad},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"tracks": "ok", "llm": "fail: no api key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := get(t, New(tt.checkers...), "/readyz")
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			for k, want := range tt.wantChecks {
				if got := body.Checks[k]; got != want {
					t.Errorf("checks[%s] = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestReadyz_CheckerGetsDeadline(t *testing.T) {
	t.Parallel()
	var hasDeadline bool
	c := Checker{Name: "d", Check: func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}}
	get(t, New(c), "/readyz")
	if !hasDeadline {
		t.Error("checker context has no deadline")
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	t.Parallel()
	a, b := make(chan struct{}), make(chan struct{})
	// Each checker only passes once the other one has started.
	meet := func(mine, other chan struct{}) func(context.Context) error {
		return func(ctx context.Context) error {
			close(mine)
			select {
			case <-other:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	code, body := get(t, New(
		Checker{Name: "tracks", Check: meet(a, b)},
		Checker{Name: "output", Check: meet(b, a)},
	), "/readyz")
	if code != http.StatusOK {
		t.Fatalf("readyz = %d %+v, want 200", code, body)
	}
	if body.Took == "" {
		t.Error("took not reported")
	}
}

func TestDirCheckers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	if err := DirReadable("tracks", dir).Check(ctx); err != nil {
		t.Errorf("DirReadable(existing) = %v", err)
	}
	if err := DirReadable("tracks", filepath.Join(dir, "missing")).Check(ctx); err == nil {
		t.Error("DirReadable(missing) = nil, want error")
	}

	out := filepath.Join(dir, "output", "_transcripts")
	if err := DirWritable("output", out).Check(ctx); err != nil {
		t.Fatalf("DirWritable = %v", err)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
}

func TestConfigured(t *testing.T) {
	t.Parallel()
	if err := Configured("llm", true, "unused").Check(context.Background()); err != nil {
		t.Errorf("Configured(true) = %v", err)
	}
	err := Configured("llm", false, "GEMINI_API_KEY not set").Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("Configured(false) = %v", err)
	}
}
