// Package main is the saiyo CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/config"
	"github.com/hyperjump/saiyo/pkg/utils"
)

var version = "dev"

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "saiyo",
		Usage:   "Rank candidates against job descriptions, aspect by aspect",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path",
				Value:   config.DefaultConfigPath,
				EnvVars: []string{"SAIYO_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "log level (debug, info, warn, error); overrides the config",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "development logging at debug level",
			},
		},
		Commands: []*cli.Command{
			serverCommand(),
			searchCommand(),
			indexCommand(),
			importCommand(),
			deleteCommand(),
			rebuildCommand(),
			lookupCommand(),
			statusCommand(),
			initCommand(),
			{
				Name:  "version",
				Usage: "show version",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "saiyo version %s\n", version)
					return nil
				},
			},
		},
	}
}

// loadConfig loads config from path. When path is the default, it first looks for config.yaml
// in the current directory so that running from a project directory uses the project's config.
// When neither exists, defaults and the environment are used. It returns the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == config.DefaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				return cfg, fallback, err
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg, err := config.Load("")
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger from the global flags.
func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, path, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	debug := cfg.Debug || c.Bool("debug")
	level := cfg.LogLevel
	if c.String("log-level") != "" {
		level = c.String("log-level")
	} else if debug {
		level = "debug"
	}
	logger, err := utils.NewLogger(level, debug)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debug))
	return cfg, logger, nil
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
