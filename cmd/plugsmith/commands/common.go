package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/plugsmith/internal/config"
	"git.home.luguber.info/inful/plugsmith/internal/events"
	"git.home.luguber.info/inful/plugsmith/internal/eventstore"
	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/logfields"
	"git.home.luguber.info/inful/plugsmith/internal/metrics"
	"git.home.luguber.info/inful/plugsmith/internal/platform"
)

// Global carries state shared by every subcommand.
type Global struct {
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"plugsmith.yaml" env:"PLUGSMITH_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init        InitCmd        `cmd:"" help:"Write a starter configuration file"`
	Add         AddCmd         `cmd:"" help:"Install a plugin from a directory or git URL"`
	Remove      RemoveCmd      `cmd:"" help:"Uninstall a plugin"`
	List        ListCmd        `cmd:"" help:"List installed plugins and modules"`
	Manifest    ManifestCmd    `cmd:"" help:"Regenerate the runtime module manifest"`
	Webmanifest WebmanifestCmd `cmd:"" help:"Write the web app manifest.json"`
	Fetch       FetchCmd       `cmd:"" help:"Clone plugins from git into the plugin cache"`
	Watch       WatchCmd       `cmd:"" help:"Reinstall a local plugin whenever its files change"`
	History     HistoryCmd     `cmd:"" help:"Show install and uninstall transactions from the journal"`
}

// AfterApply runs after flag parsing; sets up logging before any config is
// read. PLUGSMITH_LOG_LEVEL overrides the default level.
func (c *CLI) AfterApply() error {
	level := config.LogLevelInfo
	if env := os.Getenv("PLUGSMITH_LOG_LEVEL"); env != "" {
		level = config.NormalizeLogLevel(env)
	}
	if c.Verbose {
		level = config.LogLevelDebug
	}
	setupLogging(level, config.LogFormatText)
	return nil
}

func setupLogging(level config.LogLevel, format config.LogFormat) {
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	var handler slog.Handler
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// loadConfig reads the configuration, falling back to defaults when the file
// does not exist, and applies its logging section unless --verbose is set.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return nil, err
	}
	if !root.Verbose && os.Getenv("PLUGSMITH_LOG_LEVEL") == "" {
		setupLogging(cfg.Logging.Level, cfg.Logging.Format)
	}
	return cfg, nil
}

// session is one opened platform project plus the journal, event sink and
// metrics recorder wired from configuration.
type session struct {
	cfg      *config.Config
	api      *platform.API
	journal  *eventstore.SQLiteStore
	nats     *events.NATSSink
	recorder *metrics.PrometheusRecorder
}

func openSession(root *CLI) (*session, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}
	var opts []platform.Option

	if cfg.JournalEnabled() {
		store, err := eventstore.NewSQLiteStore(cfg.Resolve(cfg.Journal.Path))
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryJournal, "open journal").
				WithContext("path", cfg.Journal.Path).
				Build()
		}
		s.journal = store
		opts = append(opts, platform.WithJournal(eventstore.NewJournal(store)))
	}

	if cfg.Events.NATSURL != "" {
		sink, err := events.DialNATS(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			s.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "connect event bus").
				WithContext("url", cfg.Events.NATSURL).
				Build()
		}
		s.nats = sink
		opts = append(opts, platform.WithEventSink(events.Multi{events.LogSink{}, sink}))
	}

	if cfg.Metrics.Textfile != "" {
		s.recorder = metrics.NewPrometheusRecorder(nil)
		opts = append(opts, platform.WithRecorder(s.recorder))
	}

	api, err := platform.New(cfg, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.api = api
	return s, nil
}

// Close flushes metrics and releases the journal and event bus.
func (s *session) Close() {
	if s.recorder != nil {
		path := s.cfg.Resolve(s.cfg.Metrics.Textfile)
		if err := s.recorder.WriteTextfile(path); err != nil {
			slog.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
		}
	}
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Warn("Failed to close event bus connection", logfields.Error(err))
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			slog.Warn("Failed to close journal", logfields.Error(err))
		}
	}
}

// absDir resolves a user-supplied directory and checks that it exists.
func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ferrors.NewError(ferrors.CategoryNotFound, fmt.Sprintf("directory %s does not exist", dir)).
				UserAction().
				Build()
		}
		return "", err
	}
	if !fi.IsDir() {
		return "", ferrors.ValidationError(fmt.Sprintf("%s is not a directory", dir)).UserAction().Build()
	}
	return abs, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
