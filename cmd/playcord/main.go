// Package main runs the playcord daemon, which publishes what MPD is playing
// as Discord Rich Presence.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"

	"github.com/spf13/pflag"

	"tools.zach/dev/playcord/internal/config"
	"tools.zach/dev/playcord/internal/discord"
	"tools.zach/dev/playcord/internal/logger"
	"tools.zach/dev/playcord/internal/metadata"
	"tools.zach/dev/playcord/internal/paths"
	"tools.zach/dev/playcord/internal/update"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time with -X main.version=...
var version = "dev"

// resolveVersion returns the ldflags version, or "dev+<hash>" from the VCS
// stamp the toolchain embeds in plain builds.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision, suffix string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			if s.Value == "true" {
				suffix = ".dirty"
			}
		}
	}
	if revision == "" {
		return version
	}
	return "dev+" + revision[:min(7, len(revision))] + suffix
}

// ///////////////////////////////////////////////
// Flags
// ///////////////////////////////////////////////

type options struct {
	dataDir   string
	logLevel  string
	logStderr bool
	tail      int
	version   bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := pflag.NewFlagSet(paths.BinaryName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.dataDir, "data-dir", "d", "", "data directory (default ~/"+paths.DataDirRel+" or $"+paths.DataDirEnv+")")
	fs.StringVar(&o.logLevel, "log-level", "", "log level, overriding log.level in config.toml")
	fs.BoolVar(&o.logStderr, "log-stderr", false, "also write log records to stderr")
	fs.IntVar(&o.tail, "tail", 0, "print the last `N` lines of the log and exit")
	fs.BoolVarP(&o.version, "version", "v", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if o.tail < 0 {
		return o, fmt.Errorf("--tail must not be negative")
	}
	if o.logLevel != "" {
		probe := config.DefaultConfig()
		probe.Log.Level = o.logLevel
		if err := probe.Validate(); err != nil {
			return o, fmt.Errorf("--log-level: %w", err)
		}
	}
	return o, nil
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the exit, so deferred cleanup always happens.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", paths.BinaryName, err)
		return 2
	}

	ver := resolveVersion()
	if opts.version {
		fmt.Fprintln(stdout, paths.BinaryName, ver)
		return 0
	}

	dirs, err := paths.Resolve(opts.dataDir)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}

	if opts.tail > 0 {
		lines, err := logger.Tail(dirs.Log(), opts.tail)
		if err != nil {
			fmt.Fprintf(stderr, "reading log: %v\n", err)
			return 1
		}
		if len(lines) > 0 {
			fmt.Fprintln(stdout, strings.Join(lines, "\n"))
		}
		return 0
	}

	if err := dirs.Ensure(); err != nil {
		fmt.Fprintf(stderr, "fatal: create data dir: %v\n", err)
		return 1
	}
	if err := writeDefaultConfig(dirs); err != nil {
		fmt.Fprintf(stderr, "warning: failed to write default config: %v\n", err)
	}

	cfg, err := config.Load(dirs.Root)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: load config: %v\n", err)
		return 1
	}

	levelName := cfg.Log.Level
	if opts.logLevel != "" {
		levelName = opts.logLevel
	}
	log, level, logCloser := logger.New(logger.Options{
		Path:      dirs.Log(),
		Level:     logger.ParseLevel(levelName),
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Stderr:    opts.logStderr,
	})
	defer logCloser.Close()
	slog.SetDefault(log)

	pid, err := acquirePID(dirs.PID())
	if err != nil {
		fmt.Fprintln(stderr, err)
		logger.Fail(log, "cannot start", "error", err)
		return 1
	}
	defer pid.release()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	slog.Info("playcord starting", "version", ver, "data_dir", dirs.Root, "pid", os.Getpid())

	if cfg.Update.Check {
		go update.NewChecker(update.LatestReleaseURL(update.Repository)).Check(ctx, ver)
	}

	addr := resolveMPDAddr(ctx, cfg)
	session := discord.NewSession(discord.WithDiagnostic(func(msg string) {
		slog.Debug("discord diagnostic", "message", msg)
	}))
	d := newDaemon(dirs, cfg, metadata.NewMPD(addr, cfg.MPD.Password), session, level)
	d.pinLevel = opts.logLevel != ""

	slog.Info("watching mpd", "addr", addr, "presence_enabled", cfg.Presence.Enabled)
	if err := d.run(ctx); err != nil {
		logger.Fail(log, "daemon stopped", "error", err)
		return 1
	}
	slog.Info("playcord stopped")
	return 0
}
