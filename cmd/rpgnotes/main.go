// Command rpgnotes turns the recorded audio tracks of a tabletop RPG session
// into a speaker-attributed transcript and, optionally, AI-written session
// notes.
//
// Usage:
//
//	rpgnotes [flags] [full|transcript|status|stats|menu]
//
// Without a command an interactive menu is shown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/rpgnotes/internal/app"
	"github.com/MrWong99/rpgnotes/internal/config"
	"github.com/MrWong99/rpgnotes/internal/health"
	"github.com/MrWong99/rpgnotes/internal/observe"
	"github.com/MrWong99/rpgnotes/internal/transcript"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("rpgnotes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "rpgnotes.yaml", "path to the YAML configuration file")
	envPath := fs.String("env", ".env", "path to a dotenv file with API keys and path overrides")
	sessionNum := fs.Int("session", 0, "process this session number instead of detecting it")
	metricsAddr := fs.String("metrics-addr", "", "serve /metrics, /healthz and /readyz on this address")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	command := "menu"
	if fs.NArg() > 1 {
		usage(fs)
		return 2
	}
	if fs.NArg() == 1 {
		command = fs.Arg(0)
	}

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadDotEnv(*envPath, explicit["env"]); err != nil {
		fmt.Fprintf(stderr, "rpgnotes: %v\n", err)
		return 1
	}
	cfg, err := config.LoadOrDefault(*configPath, explicit["config"])
	if err != nil {
		fmt.Fprintf(stderr, "rpgnotes: %v\n", err)
		return 1
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		fmt.Fprintf(stderr, "rpgnotes: %v\n", err)
		return 1
	}
	if *metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = *metricsAddr
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(stderr, cfg.LogLevel))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	// Without a listener nothing reads the telemetry, so a failed init only
	// costs metrics and the pipeline still runs.
	tel, err := observe.Init(ctx, observe.TelemetryConfig{ServiceName: "rpgnotes"})
	switch {
	case err != nil && cfg.Telemetry.MetricsAddr != "":
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	case err != nil:
		slog.Warn("telemetry unavailable", "err", err)
	default:
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	var opts []app.Option
	if p, name := buildLLM(cfg, reg); p != nil {
		opts = append(opts, app.WithLLM(p, name))
	}

	application, err := app.New(cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		bound, err := tel.Serve(addr, observe.DefaultMetrics(), health.New(application.ReadinessChecks()...).Register)
		if err != nil {
			slog.Error("failed to start telemetry listener", "addr", addr, "err", err)
			return 1
		}
		slog.Info("telemetry listening", "addr", bound.String())
	}

	slog.Debug("rpgnotes starting",
		"command", command,
		"config", *configPath,
		"output", cfg.Paths.Output,
		"tracks", cfg.Paths.TrackDir(),
	)

	if err := dispatch(ctx, stdout, application, command, *sessionNum); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted")
			return 130
		}
		if errors.Is(err, errUsage) {
			usage(fs)
			return 2
		}
		if errors.Is(err, transcript.ErrNoUsableInput) {
			slog.Error("nothing to transcribe; check the track directory", "tracks", cfg.Paths.TrackDir(), "err", err)
			return 1
		}
		slog.Error("command failed", "command", command, "err", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("unknown command")

func dispatch(ctx context.Context, out io.Writer, a *app.App, command string, session int) error {
	switch command {
	case "full":
		return runFullTo(ctx, out, a, session)
	case "transcript":
		return runTranscriptTo(ctx, out, a, session)
	case "status":
		st, err := a.Status(ctx, session)
		if err != nil {
			return err
		}
		printStatus(out, st)
		return nil
	case "stats":
		info, stats, err := a.Stats(ctx, session)
		if err != nil {
			return err
		}
		printStats(out, info.Number, stats)
		return nil
	case "menu":
		return menu(ctx, os.Stdin, out, a, session)
	default:
		return fmt.Errorf("%w %q", errUsage, command)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), `Usage: rpgnotes [flags] [command]

Commands:
  full        assemble the transcript and generate session notes
  transcript  assemble the transcript only
  status      show what exists for the current session
  stats       show per-speaker statistics of an assembled transcript
  menu        interactive menu (default)

Flags:
`)
	fs.PrintDefaults()
}
