package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	saiyocli "github.com/hyperjump/saiyo/internal/cli"
	"github.com/hyperjump/saiyo/internal/config"
	"github.com/hyperjump/saiyo/internal/extract"
	"github.com/hyperjump/saiyo/internal/indexer"
	"github.com/hyperjump/saiyo/internal/keyword"
	"github.com/hyperjump/saiyo/internal/metrics"
	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/internal/profile"
	"github.com/hyperjump/saiyo/internal/server"
	"github.com/hyperjump/saiyo/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

var outputFlag = &cli.StringFlag{
	Name:    "output",
	Aliases: []string{"o"},
	Usage:   "output format: text or json",
	Value:   string(saiyocli.OutputText),
}

var serverURLFlag = &cli.StringFlag{
	Name:  "server",
	Usage: "saiyo server URL; when set the command runs against the server instead of local storage",
}

// withComponents loads config, builds the components and runs fn with them.
func withComponents(c *cli.Context, fn func(*config.Config, *zap.Logger, *Components) error) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	comps, err := initializeComponents(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()
	return fn(cfg, logger, comps)
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "run the HTTP API and watch the configured profile directories",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-watch", Usage: "do not watch profile directories"},
		},
		Action: func(c *cli.Context) error {
			return withComponents(c, func(cfg *config.Config, logger *zap.Logger, comps *Components) error {
				return runServer(c, cfg, logger, comps)
			})
		},
	}
}

func runServer(c *cli.Context, cfg *config.Config, logger *zap.Logger, comps *Components) error {
	metrics.Register()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	var w *watcher.Watcher
	if !c.Bool("no-watch") && len(cfg.Watch.Directories) > 0 {
		w = watcher.New(cfg.Watch.Directories, comps.Manager,
			watcher.WithLogger(logger),
			watcher.WithDebounce(cfg.Watch.Debounce),
			watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
		)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		go func() {
			n := w.SyncExisting(ctx)
			logger.Info("existing profile files synced", zap.Int("files", n))
		}()
	}

	srv := server.NewServer(comps.Engine, comps.Manager, comps.Storage, cfg,
		server.WithLogger(logger),
		server.WithDirectory(comps.Directory),
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case <-sigChan:
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("server failed", zap.Error(serveErr))
		}
	}

	logger.Info("shutting down")
	if w != nil {
		w.Stop()
	}
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	if err := comps.Manager.Save(); err != nil {
		logger.Warn("index save failed", zap.String("path", cfg.Storage.IndexPath), zap.Error(err))
	}
	return serveErr
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "rank candidates against a job description",
		ArgsUsage: "<query...>",
		Description: "The query is all remaining arguments joined by spaces, so multi-word queries\n" +
			"work with or without quotes. Use --file to read the job description from a document.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "k", Usage: "number of candidates to return (0 = configured default)"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read the job description from a document"},
			outputFlag,
			serverURLFlag,
		},
		Action: runSearch,
	}
}

func runSearch(c *cli.Context) error {
	format, err := saiyocli.ParseOutputFormat(c.String("output"))
	if err != nil {
		return err
	}
	query := buildSearchQuery(c.Args().Slice())
	file := c.String("file")
	if file == "" && query == "" {
		return cli.Exit("search needs a query or --file", 2)
	}
	if file != "" && query != "" {
		return cli.Exit("use either a query or --file, not both", 2)
	}

	if url := c.String("server"); url != "" {
		var resp *models.SearchResponse
		if file != "" {
			resp, err = searchFileViaHTTP(c.Context, url, file, c.Int("k"))
		} else {
			resp, err = searchViaHTTP(c.Context, url, &models.SearchRequest{Query: query, K: c.Int("k")})
		}
		if err != nil {
			return err
		}
		return saiyocli.WriteSearchResults(c.App.Writer, resp, format)
	}

	if file != "" {
		text, err := extract.NewExtractor().Extract(file)
		if err != nil {
			return fmt.Errorf("read job description: %w", err)
		}
		query = text
	}
	return withComponents(c, func(_ *config.Config, _ *zap.Logger, comps *Components) error {
		resp, err := comps.Engine.Search(c.Context, &models.SearchRequest{Query: query, K: c.Int("k")})
		if err != nil {
			return err
		}
		return saiyocli.WriteSearchResults(c.App.Writer, resp, format)
	})
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "index profile files (YAML or JSON) or directories of them",
		ArgsUsage: "<path...>",
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return cli.Exit("index needs at least one file or directory", 2)
			}
			return withComponents(c, func(_ *config.Config, logger *zap.Logger, comps *Components) error {
				for _, path := range paths {
					info, err := os.Stat(path)
					if err != nil {
						return err
					}
					if info.IsDir() {
						n, err := comps.Manager.IndexDirectory(c.Context, path)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "Indexed %d profile files from %s\n", n, path)
						continue
					}
					ids, err := comps.Manager.IndexFile(c.Context, path)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Indexed %s: %s\n", path, strings.Join(ids, ", "))
				}
				logger.Debug("index command done", zap.Int("paths", len(paths)))
				return nil
			})
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "import candidates from an xlsx roster",
		ArgsUsage: "<roster.xlsx>",
		Flags:     []cli.Flag{outputFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("import needs exactly one roster file", 2)
			}
			format, err := saiyocli.ParseOutputFormat(c.String("output"))
			if err != nil {
				return err
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()
			profiles, rowErrs, err := profile.ImportSpreadsheet(f)
			if err != nil {
				return err
			}
			return withComponents(c, func(_ *config.Config, logger *zap.Logger, comps *Components) error {
				report := importProfiles(c.Context, comps.Manager, profiles, rowErrs, logger)
				if err := c.Context.Err(); err != nil {
					return err
				}
				return saiyocli.WriteReport(c.App.Writer, report, format)
			})
		},
	}
}

// importProfiles stores and indexes each profile; row and indexing failures are reported, not fatal.
func importProfiles(ctx context.Context, m *indexer.Manager, profiles []*profile.Profile, rowErrs []error, logger *zap.Logger) *indexer.BootstrapReport {
	start := time.Now()
	report := &indexer.BootstrapReport{}
	for _, rowErr := range rowErrs {
		var re *profile.RosterError
		id := ""
		if errors.As(rowErr, &re) {
			id = fmt.Sprintf("row %d", re.Row)
		}
		report.Failed = append(report.Failed, indexer.BootstrapFailure{Identity: id, Error: rowErr.Error()})
	}
	for _, p := range profiles {
		if ctx.Err() != nil {
			break
		}
		if _, err := m.IndexProfile(ctx, p); err != nil {
			logger.Warn("roster profile skipped", zap.String("identity", p.Identity), zap.Error(err))
			report.Failed = append(report.Failed, indexer.BootstrapFailure{Identity: p.Identity, Error: err.Error()})
			continue
		}
		report.Indexed++
	}
	report.Live = m.Stats().Live
	report.Duration = time.Since(start)
	return report
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "remove candidates from the index and the profile store",
		ArgsUsage: "<identity...>",
		Action: func(c *cli.Context) error {
			ids := c.Args().Slice()
			if len(ids) == 0 {
				return cli.Exit("delete needs at least one identity", 2)
			}
			return withComponents(c, func(_ *config.Config, _ *zap.Logger, comps *Components) error {
				for _, id := range ids {
					n, err := comps.Manager.RemoveCandidate(c.Context, id)
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					fmt.Fprintf(c.App.Writer, "Removed %s (%d entries)\n", id, n)
				}
				return nil
			})
		},
	}
}

func rebuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "rebuild the vector index from the profile store",
		Flags: []cli.Flag{outputFlag},
		Action: func(c *cli.Context) error {
			format, err := saiyocli.ParseOutputFormat(c.String("output"))
			if err != nil {
				return err
			}
			return withComponents(c, func(_ *config.Config, _ *zap.Logger, comps *Components) error {
				report, err := comps.Manager.Rebuild(c.Context)
				if err != nil {
					return err
				}
				return saiyocli.WriteReport(c.App.Writer, report, format)
			})
		},
	}
}

func lookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "find candidates by name, role, company or skill",
		ArgsUsage: "<terms...>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fuzzy", Usage: "tolerate typos in the terms"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum number of candidates"},
			outputFlag,
		},
		Action: func(c *cli.Context) error {
			q := buildSearchQuery(c.Args().Slice())
			if q == "" {
				return cli.Exit("lookup needs search terms", 2)
			}
			format, err := saiyocli.ParseOutputFormat(c.String("output"))
			if err != nil {
				return err
			}
			return withComponents(c, func(_ *config.Config, _ *zap.Logger, comps *Components) error {
				hits, err := comps.Directory.Search(c.Context, q, c.Int("limit"),
					&keyword.SearchOptions{FuzzyEnabled: c.Bool("fuzzy")})
				if err != nil {
					return err
				}
				return saiyocli.WriteDirectoryHits(c.App.Writer, hits, format)
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show index and profile store status",
		Flags: []cli.Flag{outputFlag, serverURLFlag},
		Action: func(c *cli.Context) error {
			format, err := saiyocli.ParseOutputFormat(c.String("output"))
			if err != nil {
				return err
			}
			if url := c.String("server"); url != "" {
				st, err := statusViaHTTP(c.Context, url)
				if err != nil {
					return err
				}
				return saiyocli.WriteStatus(c.App.Writer, st, format)
			}
			return withComponents(c, func(cfg *config.Config, _ *zap.Logger, comps *Components) error {
				st, err := server.CollectStatus(c.Context, comps.Manager, comps.Storage, comps.Directory, cfg)
				if err != nil {
					return err
				}
				return saiyocli.WriteStatus(c.App.Writer, st, format)
			})
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "write a config file with the default settings",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				path = "config.yaml"
			}
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return cli.Exit(fmt.Sprintf("%s already exists; use --force to overwrite", path), 1)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
			return nil
		},
	}
}
