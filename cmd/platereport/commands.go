package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"go-sample-plates-report/internal/config"
	"go-sample-plates-report/internal/connectors/samples"
	"go-sample-plates-report/internal/export"
	httpapi "go-sample-plates-report/internal/http"
	"go-sample-plates-report/internal/platedata"
	"go-sample-plates-report/internal/publish"
	"go-sample-plates-report/internal/render"
	"go-sample-plates-report/internal/report"
)

var filterFlag = &cli.StringSliceFlag{
	Name:    "filter",
	Aliases: []string{"f"},
	Usage:   "Search control as control=value, e.g. search-family=fabaceae (repeatable)",
}

var outputDirFlag = &cli.StringFlag{
	Name:    "output-dir",
	Aliases: []string{"o"},
	Usage:   "Directory the reports are written to",
	EnvVars: []string{"APP_OUTPUT_DIR"},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the live report and its API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Usage:   "Listen address",
			EnvVars: []string{"APP_LISTEN_ADDR"},
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if c.IsSet("listen") {
			cfg.ListenAddr = c.String("listen")
		}
		logger := newLogger(cfg)

		srv, err := httpapi.NewServer(cfg, logger)
		if err != nil {
			return fmt.Errorf("initialize server: %w", err)
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("version", version).Str("addr", cfg.ListenAddr).Msg("starting report server")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, nethttp.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var renderCommand = &cli.Command{
	Name:  "render",
	Usage: "Render the static print view of the report as HTML",
	Flags: []cli.Flag{filterFlag, outputDirFlag},
	Action: func(c *cli.Context) error {
		return runPublish(c, true, false)
	},
}

var exportCommand = &cli.Command{
	Name:  "export",
	Usage: "Export the filtered plates and coverage as an xlsx workbook",
	Flags: []cli.Flag{filterFlag, outputDirFlag},
	Action: func(c *cli.Context) error {
		return runPublish(c, false, true)
	},
}

var publishCommand = &cli.Command{
	Name:  "publish",
	Usage: "Render both the HTML report and the workbook, then publish them",
	Flags: []cli.Flag{filterFlag, outputDirFlag},
	Action: func(c *cli.Context) error {
		return runPublish(c, true, true)
	},
}

var importCommand = &cli.Command{
	Name:  "import",
	Usage: "Load a JSON dataset file into the configured SQL store",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "from",
			Usage:    "JSON dataset file to import",
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		if cfg.DataSource == config.SourceJSON {
			return fmt.Errorf("import needs a SQL data source, not %q", cfg.DataSource)
		}
		layout, err := report.LoadLayout(cfg.Layout)
		if err != nil {
			return err
		}

		f, err := os.Open(c.String("from"))
		if err != nil {
			return fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		ds, err := platedata.DecodeJSON(f, layout.Schema())
		if err != nil {
			return err
		}

		store, err := samples.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(c.Context, cfg.DBConnTimeout+cfg.DBQueryTimeout)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		stats, err := store.ImportDataset(ctx, ds)
		if err != nil {
			return err
		}
		logger.Info().
			Str("source", store.Kind()).
			Int("plates", stats.Plates).
			Int("wells", stats.Wells).
			Int("taxa", stats.Taxa).
			Msg("dataset imported")
		return nil
	},
}

// runPublish builds the filtered report once and publishes the requested
// artifacts with every configured publisher.
func runPublish(c *cli.Context, html, xlsx bool) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	logger := newLogger(cfg)

	layout, err := report.LoadLayout(cfg.Layout)
	if err != nil {
		return err
	}
	criteria, err := parseFilters(c.StringSlice("filter"), layout)
	if err != nil {
		return err
	}
	ds, err := loadDataset(c.Context, cfg, layout)
	if err != nil {
		return err
	}
	state := report.NewState(ds, layout)
	state.FilterChange(criteria)
	cov := report.BuildCoverage(ds.Taxa)
	now := time.Now()

	var artifacts []publish.Artifact
	if html {
		var buf bytes.Buffer
		err := render.Write(&buf, render.PrintPage(render.Page{State: state, Coverage: cov, GeneratedAt: now}))
		if err != nil {
			return err
		}
		artifacts = append(artifacts, publish.Artifact{
			Name:        publish.ReportName(now, "html"),
			ContentType: publish.ContentTypeHTML,
			Data:        buf.Bytes(),
		})
	}
	if xlsx {
		var buf bytes.Buffer
		if err := export.Write(&buf, state, cov); err != nil {
			return err
		}
		artifacts = append(artifacts, publish.Artifact{
			Name:        publish.ReportName(now, "xlsx"),
			ContentType: publish.ContentTypeXLSX,
			Data:        buf.Bytes(),
		})
	}

	pubs, err := publish.FromConfig(c.Context, cfg)
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		locations, err := publish.All(c.Context, pubs, a)
		if err != nil {
			return err
		}
		logReport(logger, a, state, locations)
	}
	return nil
}

func logReport(logger zerolog.Logger, a publish.Artifact, state *report.State, locations []string) {
	logger.Info().
		Str("name", a.Name).
		Int("bytes", len(a.Data)).
		Int("plates", state.MaxPage()).
		Strs("locations", locations).
		Msg("report published")
}

func loadDataset(ctx context.Context, cfg config.Config, layout report.Layout) (*platedata.Dataset, error) {
	source, err := samples.OpenSource(cfg, layout.Schema())
	if err != nil {
		return nil, err
	}
	defer source.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.DBConnTimeout+cfg.DBQueryTimeout)
	defer cancel()
	return source.LoadDataset(ctx)
}

// parseFilters turns control=value pairs into criteria. Flag controls are
// checked by any truthy value.
func parseFilters(values []string, layout report.Layout) (report.Criteria, error) {
	criteria := report.NewCriteria()
	for _, raw := range values {
		control, value, ok := strings.Cut(raw, "=")
		control = strings.TrimSpace(control)
		if !ok || control == "" {
			return criteria, fmt.Errorf("filter %q: want control=value", raw)
		}
		def, found := layout.Criterion(control)
		if !found {
			return criteria, fmt.Errorf("filter %q: layout %s has no control %s", raw, layout.Name, control)
		}
		if def.Kind == report.Flag {
			criteria = criteria.WithChecked(control, platedata.Truthy(value))
			continue
		}
		criteria = criteria.WithText(control, value)
	}
	return criteria, nil
}
