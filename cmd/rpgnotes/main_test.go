package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/rpgnotes/internal/app"
	"github.com/MrWong99/rpgnotes/internal/config"
	"github.com/MrWong99/rpgnotes/internal/observe"
	"github.com/MrWong99/rpgnotes/internal/resilience"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm/mock"
)

func testApp(t *testing.T) *app.App {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Output = filepath.Join(root, "output")
	cfg.Paths.Temp = filepath.Join(root, "temp")
	cfg.Paths.Downloads = filepath.Join(root, "downloads")
	cfg.Paths.SpeakerMap = filepath.Join(root, "speakers.json")
	cfg.Paths.Template = filepath.Join(root, "template.md")
	if err := os.MkdirAll(cfg.Paths.TrackDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	track := `[{"start":0,"end":1,"text":"Roll for initiative.","no_speech_prob":0.01}]`
	if err := os.WriteFile(filepath.Join(cfg.Paths.TrackDir(), "1-gm.json"), []byte(track), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatal(err)
	}
	a, err := app.New(cfg, app.WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestMenu(t *testing.T) {
	t.Parallel()
	a := testApp(t)
	var out bytes.Buffer
	in := strings.NewReader("9\n2\n3\n")
	if err := menu(context.Background(), in, &out, a, 4); err != nil {
		t.Fatalf("menu: %v", err)
	}
	got := out.String()
	for _, want := range []string{"[1] Full pipeline", `unknown option "9"`, "Session 4 (", "Session 4 · ", "transcript: written, 1 segments from 1 tracks"} {
		if !strings.Contains(got, want) {
			t.Errorf("output misses %q:\n%s", want, got)
		}
	}
}

func TestMenu_EndOfInput(t *testing.T) {
	t.Parallel()
	if err := menu(context.Background(), strings.NewReader(""), &bytes.Buffer{}, testApp(t), 0); err != nil {
		t.Errorf("menu on empty input: %v", err)
	}
}

func TestMenu_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()
	if err := menu(ctx, r, &bytes.Buffer{}, testApp(t), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	t.Parallel()
	if err := dispatch(context.Background(), io.Discard, testApp(t), "explode", 0); !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want errUsage", err)
	}
}

func TestBuildLLM(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterLLM("good", func(config.ProviderEntry) (llm.Provider, error) { return &mock.Provider{}, nil })
	reg.RegisterLLM("also-good", func(config.ProviderEntry) (llm.Provider, error) { return &mock.Provider{}, nil })
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) { return nil, errors.New("no key") })

	tests := []struct {
		name      string
		primary   string
		fallbacks []string
		wantName  string
		wantNil   bool
		wantChain bool
	}{
		{"single", "good", nil, "good", false, false},
		{"broken primary falls through", "broken", []string{"good"}, "good", false, false},
		{"chain", "good", []string{"also-good"}, "fallback", false, true},
		{"nothing usable", "broken", []string{"unregistered"}, "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.Providers.LLM = config.ProviderEntry{Name: tt.primary, Model: "m"}
			for _, fb := range tt.fallbacks {
				cfg.Providers.LLMFallbacks = append(cfg.Providers.LLMFallbacks, config.ProviderEntry{Name: fb, Model: "m"})
			}
			p, name := buildLLM(cfg, reg)
			if (p == nil) != tt.wantNil || name != tt.wantName {
				t.Fatalf("buildLLM = %T %q, want nil=%v name %q", p, name, tt.wantNil, tt.wantName)
			}
			if _, ok := p.(*resilience.LLMFallback); ok != tt.wantChain {
				t.Errorf("provider type %T, want fallback chain %v", p, tt.wantChain)
			}
		})
	}
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	p, err := reg.CreateLLM(config.ProviderEntry{Name: "ollama", Model: "llama3"})
	if err != nil || p == nil {
		t.Fatalf("CreateLLM(ollama) = %v, %v", p, err)
	}
	p, err = reg.CreateLLM(config.ProviderEntry{Name: compatName, Model: "local", BaseURL: "http://localhost:8000/v1"})
	if err != nil || p == nil {
		t.Fatalf("CreateLLM(%s) = %v, %v", compatName, p, err)
	}
	if len(reg.LLMNames()) < 2 {
		t.Errorf("LLMNames = %v", reg.LLMNames())
	}
}

func TestPrintStats(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	a := testApp(t)
	if _, err := a.RunTranscript(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	info, stats, err := a.Stats(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	printStats(&buf, info.Number, stats)
	if !strings.Contains(buf.String(), "gm") || !strings.Contains(buf.String(), time.Second.String()) {
		t.Errorf("stats output:\n%s", buf.String())
	}
}

// writeWorkspace lays out a config file and one track under a temp dir and
// returns the config path and the transcript directory.
func writeWorkspace(t *testing.T) (cfgPath, transcripts string) {
	t.Helper()
	for _, key := range []string{"OUTPUT_DIR", "TEMP_DIR", "DOWNLOADS_DIR", "DISCORD_MAPPING_FILE", "RPGNOTES_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	root := t.TempDir()
	trackDir := filepath.Join(root, "temp", "transcriptions")
	if err := os.MkdirAll(trackDir, 0o755); err != nil {
		t.Fatal(err)
	}
	track := `[{"start":0.5,"end":0.9,"text":"hi","no_speech_prob":0.05}]`
	if err := os.WriteFile(filepath.Join(trackDir, "track-bob.json"), []byte(track), 0o644); err != nil {
		t.Fatal(err)
	}
	yaml := "log_level: warn\n" +
		"paths:\n" +
		"  output: " + filepath.Join(root, "output") + "\n" +
		"  temp: " + filepath.Join(root, "temp") + "\n" +
		"  downloads: " + filepath.Join(root, "downloads") + "\n" +
		"  speaker_map: " + filepath.Join(root, "speakers.json") + "\n"
	cfgPath = filepath.Join(root, "rpgnotes.yaml")
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, filepath.Join(root, "output", "_transcripts")
}

func TestRun_Transcript(t *testing.T) {
	cfgPath, transcripts := writeWorkspace(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-config", cfgPath, "-session", "7", "transcript"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	for _, name := range []string{"session7.json", "session7.txt"} {
		if _, err := os.Stat(filepath.Join(transcripts, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	text, err := os.ReadFile(filepath.Join(transcripts, "session7.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "\n\n[bob]\nhi " {
		t.Errorf("text artifact = %q", text)
	}
	if !strings.Contains(stdout.String(), "Session 7 (") {
		t.Errorf("stdout misses run summary:\n%s", stdout.String())
	}

	// Second start in the same process: telemetry is already registered
	// and the session already assembled, neither of which may fail the run.
	stdout.Reset()
	if code := run([]string{"-config", cfgPath, "-session", "7", "transcript"}, &stdout, &stderr); code != 0 {
		t.Fatalf("second run exit = %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "already present") {
		t.Errorf("second run should skip assembly:\n%s", stdout.String())
	}
}

func TestRun_ExitCodes(t *testing.T) {
	cfgPath, _ := writeWorkspace(t)
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"-nope"}, 2},
		{"two commands", []string{"-config", cfgPath, "transcript", "full"}, 2},
		{"unknown command", []string{"-config", cfgPath, "explode"}, 2},
		{"missing explicit config", []string{"-config", cfgPath + ".missing", "status"}, 1},
		{"status", []string{"-config", cfgPath, "-session", "3", "status"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := run(tt.args, io.Discard, &stderr); got != tt.want {
				t.Errorf("exit = %d, want %d; stderr:\n%s", got, tt.want, stderr.String())
			}
		})
	}
}
