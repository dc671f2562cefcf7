package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"go-sample-plates-report/internal/config"
)

var version = "dev"

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "source",
		Usage:   "Data source (sqlite, mysql, postgres, json)",
		EnvVars: []string{"APP_DATA_SOURCE"},
	},
	&cli.StringFlag{
		Name:    "sqlite",
		Usage:   "Path to the sqlite database",
		EnvVars: []string{"APP_SQLITE_PATH"},
	},
	&cli.StringFlag{
		Name:    "json",
		Usage:   "Path to a JSON dataset file",
		EnvVars: []string{"APP_JSON_PATH"},
	},
	&cli.StringFlag{
		Name:    "layout",
		Aliases: []string{"l"},
		Usage:   "Report layout name (nitfix, rapid) or path to a YAML layout",
		EnvVars: []string{"APP_LAYOUT"},
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		EnvVars: []string{"APP_LOG_LEVEL"},
	},
	&cli.StringFlag{
		Name:    "log-format",
		Usage:   "Log format (json, console)",
		EnvVars: []string{"APP_LOG_FORMAT"},
	},
}

func main() {
	app := &cli.App{
		Name:    "platereport",
		Usage:   "Sample plates report server and renderer",
		Version: version,
		Description: `platereport serves the interactive sample plates report and renders
static copies of it.

Examples:
  # Serve the live report from the default sqlite database
  platereport serve

  # Load a JSON export into sqlite, then publish today's HTML and xlsx reports
  platereport import --from plates.json
  platereport publish --filter search-family=fabaceae`,
		Flags: globalFlags,
		Commands: []*cli.Command{
			serveCommand,
			renderCommand,
			exportCommand,
			publishCommand,
			importCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the global flags on top.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.FromEnv()
	if c.IsSet("source") {
		cfg.DataSource = strings.ToLower(c.String("source"))
	}
	if c.IsSet("sqlite") {
		cfg.SQLitePath = c.String("sqlite")
	}
	if c.IsSet("json") {
		cfg.JSONPath = c.String("json")
	}
	if c.IsSet("layout") {
		cfg.Layout = c.String("layout")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if strings.EqualFold(cfg.LogFormat, "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("app", "platereport").Logger()
}
