package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/INLOpen/onecd/config"
	"github.com/INLOpen/onecd/container"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// commonFlags are the flags every subcommand shares.
type commonFlags struct {
	configPath string
	logLevel   string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "onecd.yaml", "YAML config file (missing file means defaults)")
	fs.StringVar(&cf.logLevel, "log-level", "", "override log level: debug, info, warn, error")
	return cf
}

// parseCommand parses a subcommand's arguments and returns the container
// path. The path may come before or after the flags; stdlib flag stops at the
// first positional argument, so a trailing flag group is parsed in a second
// pass.
func parseCommand(fs *flag.FlagSet, args []string) string {
	fs.Parse(args)
	path := fs.Arg(0)
	if fs.NArg() > 1 {
		fs.Parse(fs.Args()[1:])
	}
	return path
}

// setup loads the config and builds the logger. The colored handler is only
// picked when stderr is a terminal.
func (cf *commonFlags) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(cf.configPath)
	if err != nil {
		return nil, nil, err
	}
	levelStr := cfg.Logging.Level
	if cf.logLevel != "" {
		levelStr = cf.logLevel
	}
	level := config.ParseLogLevel(levelStr, nil)

	var handler slog.Handler
	format := cfg.Logging.Format
	if format == "" || format == "auto" {
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "tint"
		} else {
			format = "text"
		}
	}
	switch format {
	case "tint":
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level})
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return cfg, slog.New(handler), nil
}

// openContainer opens the container at the given path.
func openContainer(path string, cfg *config.Config, logger *slog.Logger) (*container.Container, error) {
	if path == "" {
		return nil, fmt.Errorf("missing container path argument")
	}
	return container.Open(container.OpenOptions{
		FilePath:          path,
		Logger:            logger,
		BlobCacheCapacity: cfg.Cache.BlobCacheCapacity,
	})
}
