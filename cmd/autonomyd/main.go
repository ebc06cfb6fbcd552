package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/agent-command/autonomyd/internal/calendar"
	"github.com/agent-command/autonomyd/internal/clock"
	"github.com/agent-command/autonomyd/internal/config"
	"github.com/agent-command/autonomyd/internal/journal"
	"github.com/agent-command/autonomyd/internal/metrics"
	"github.com/agent-command/autonomyd/internal/robot"
	"github.com/agent-command/autonomyd/internal/supervisor"
)

// Version information
const Version = "0.1.0"

const defaultConfigPath = "/etc/autonomyd/config.yaml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Check for subcommands first
	if len(args) > 0 {
		switch args[0] {
		case "check":
			return runCheckCommand(args[1:], os.Stdout, time.Now())
		case "version":
			fmt.Printf("autonomyd version %s\n", Version)
			return nil
		case "help", "-h", "--help":
			printHelp()
			return nil
		}
	}

	// Default: run as daemon
	return runDaemon(args)
}

func printHelp() {
	fmt.Println(`autonomyd - supervises a robot's autonomy on configured days

Usage:
  autonomyd [command] [options]

Commands:
  (none)       Run as daemon (default)
  check        Show whether today is a supervision day
  version      Show version information
  help         Show this help

Daemon Options:
  --config string     Path to config file (default "/etc/autonomyd/config.yaml")
  --log-level string  debug, info, warn or error (default "info")

Check Options:
  --json        Output in JSON format
  --config      Path to config file`)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func loadPolicy(cfg *config.Config) (*calendar.Policy, error) {
	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, err
	}
	return calendar.NewPolicy(cfg.Calendar.SupervisionDays, loc)
}

func runCheckCommand(args []string, out io.Writer, now time.Time) error {
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	policy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	supervise := policy.IsSupervisionDay(now)
	if *jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"date":             now.In(policy.Location()).Format("2006-01-02"),
			"timezone":         policy.Location().String(),
			"supervision_day":  supervise,
			"supervision_days": policy.Days(),
		})
	}

	mode := "high autonomy day"
	if supervise {
		mode = "supervision day (low autonomy)"
	}
	fmt.Fprintf(out, "Today:            %s (%s)\n", now.In(policy.Location()).Format("2006-01-02"), policy.Location())
	fmt.Fprintf(out, "Mode:             %s\n", mode)
	fmt.Fprintf(out, "Supervision days: %s\n", strings.Join(policy.Days(), ", "))
	return nil
}

func runDaemon(args []string) error {
	fs := pflag.NewFlagSet("autonomyd", pflag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	policy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Listen, m, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	j, err := journal.Open(cfg.Storage.StateDir, cfg.Storage.JournalMax)
	if err != nil {
		// The journal is diagnostic only; run without it.
		logger.Warn("journal disabled", "error", err)
		j = nil
	} else {
		defer j.Close()
	}

	iv := cfg.Intervals
	sup, err := supervisor.New(supervisor.Options{
		Dialer: &robot.WSDialer{
			URL:    cfg.Robot.WSURL,
			Token:  cfg.Robot.Token,
			Serial: cfg.Robot.Serial,
			Logger: logger.With("component", "robot"),
		},
		Calendar: policy,
		Intervals: supervisor.Intervals{
			ExternalHold:    iv.ExternalHold(),
			AgentHold:       iv.AgentHold(),
			AnimationCheck:  iv.AnimationCheck(),
			AwaitQuestion:   iv.AwaitQuestion(),
			ResetSubroutine: iv.ResetSubroutine(),
			Reconnect:       iv.Reconnect(),
			HighAutonomy:    iv.HighAutonomy(),
		},
		Clock:   clock.Real(),
		Metrics: m,
		Journal: j,
		Logger:  logger.With("component", "supervisor"),
	})
	if err != nil {
		return err
	}

	logger.Info("autonomyd starting",
		"version", Version,
		"robot", cfg.Robot.WSURL,
		"supervision_days", len(policy.Days()),
		"timezone", policy.Location().String())

	err = sup.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
