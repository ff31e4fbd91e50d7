// Crypto history scraper CLI
// This application lists the cryptocurrencies known to the historical-data site and
// downloads their daily OHLCV and market cap history into one sorted CSV, XLSX or
// DuckDB output.
//
// Usage:
//
//	cryptoscrape coins
//	cryptoscrape history bitcoin litecoin --start 2017-01-01 --end 2017-12-31
//	cryptoscrape history bitcoin --output data/bitcoin.csv
//
// For detailed help on any command, use: cryptoscrape <command> --help
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/johnayoung/go-crypto-scraper/internal/config"
	apperrors "github.com/johnayoung/go-crypto-scraper/internal/errors"
	"github.com/johnayoung/go-crypto-scraper/internal/export"
	"github.com/johnayoung/go-crypto-scraper/internal/history"
	"github.com/johnayoung/go-crypto-scraper/internal/logger"
	"github.com/johnayoung/go-crypto-scraper/internal/metrics"
	"github.com/johnayoung/go-crypto-scraper/internal/models"
	"github.com/johnayoung/go-crypto-scraper/internal/source"
)

// CLI version information
const (
	Version    = "1.0.0"
	AppName    = "cryptoscrape"
	ConfigFile = "cryptoscrape.json"

	// ConfigEnv overrides the configuration file path
	ConfigEnv = "CRYPTOSCRAPE_CONFIG"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitRunError    = 4
)

// CLI represents the main CLI application
type CLI struct {
	config  *config.AppConfig
	loggers *logger.LoggerManager
	logger  *slog.Logger
	source  source.Source
	metrics *metrics.MetricsCollector

	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

// main is the entry point for the CLI application
func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, time.Now))
}

// run executes one command and returns the process exit code. Any failure that
// reaches this level, panics included, is printed as a single diagnostic line.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, now func() time.Time) (code int) {
	defer func() {
		if r := recover(); r != nil {
			reportError(stderr, &apperrors.InternalError{Component: "cli", Value: r})
			code = ExitRunError
		}
	}()

	if len(args) < 1 {
		printUsage(stderr)
		return ExitUsageError
	}

	command := args[0]
	rest := args[1:]

	var (
		coinsFlags   *CoinsFlags
		historyFlags *HistoryFlags
		err          error
	)

	switch command {
	case "coins":
		coinsFlags, err = parseCoinsFlags(rest)
		if err == nil && coinsFlags.Help {
			printCommandHelp(stdout, command)
			return ExitSuccess
		}
	case "history":
		historyFlags, err = parseHistoryFlags(rest)
		if err == nil && historyFlags.Help {
			printCommandHelp(stdout, command)
			return ExitSuccess
		}
	case "--version", "-v":
		fmt.Fprintf(stdout, "%s version %s\n", AppName, Version)
		return ExitSuccess
	case "--help", "-h", "help":
		if len(rest) > 0 {
			printCommandHelp(stdout, rest[0])
		} else {
			printUsage(stdout)
		}
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage(stderr)
		return ExitUsageError
	}

	if err != nil {
		reportError(stderr, err)
		fmt.Fprintf(stderr, "Run '%s %s --help' for usage.\n", AppName, command)
		return ExitUsageError
	}

	cli := &CLI{stdout: stdout, stderr: stderr, now: now}
	if err := cli.initialize(ctx); err != nil {
		reportError(stderr, err)
		return ExitConfigError
	}
	defer cli.close()

	switch command {
	case "coins":
		err = cli.handleCoins(ctx, coinsFlags)
	case "history":
		err = cli.handleHistory(ctx, historyFlags)
	}

	if err != nil {
		cli.logger.Error("command failed", "command", command, "error", err)
		reportError(stderr, err)
	}

	return exitCode(err)
}

// exitCode maps the error a command returned to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case apperrors.GetErrorType(err) == apperrors.ErrorTypeUsage:
		return ExitUsageError
	case apperrors.GetErrorType(err) == apperrors.ErrorTypeConfiguration:
		return ExitConfigError
	case apperrors.IsFatal(err):
		return ExitRunError
	default:
		// per-symbol failures never change the exit code
		return ExitSuccess
	}
}

// initialize loads configuration and wires logging, the source client and metrics
func (cli *CLI) initialize(ctx context.Context) error {
	configPath := os.Getenv(ConfigEnv)
	if configPath == "" {
		configPath = ConfigFile
	}

	cfg, err := config.NewConfigManager(configPath, logger.Discard()).LoadConfig(ctx)
	if err != nil {
		return &apperrors.ConfigError{Source: configPath, Cause: err}
	}
	cli.config = cfg

	if cfg.Logging.Output == "stderr" {
		cli.loggers = logger.NewLoggerManagerWithWriter(cfg.Logging, cli.stderr)
	} else {
		cli.loggers, err = logger.NewLoggerManager(cfg.Logging)
		if err != nil {
			return &apperrors.ConfigError{Source: "logging", Cause: err}
		}
	}
	cli.logger = cli.loggers.GetComponentLogger("cli")

	cli.source = source.NewClient(cfg.Source, cli.loggers.GetComponentLogger("source"))
	cli.metrics = metrics.NewMetricsCollector(cfg.Metrics, cli.loggers.GetComponentLogger("metrics"))

	return nil
}

func (cli *CLI) close() {
	if cli.loggers != nil {
		_ = cli.loggers.Close()
	}
}

// handleCoins prints the identifiers of every known symbol
func (cli *CLI) handleCoins(ctx context.Context, flags *CoinsFlags) error {
	ctx, _ = logger.NewRunContext(ctx)
	ctx = logger.WithOperation(ctx, "coins")
	log := logger.FromContext(ctx, cli.logger)

	symbols, err := cli.source.ListSymbols(ctx)
	if err != nil {
		return err
	}

	log.Debug("listed symbols", "count", len(symbols))
	return writeCoins(export.Destination{Path: flags.Output}, cli.stdout, symbols)
}

// writeCoins renders the symbol listing to dest
func writeCoins(dest export.Destination, stdout io.Writer, symbols []models.Symbol) (err error) {
	out, err := export.Open(dest, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = &apperrors.OutputWriteError{Destination: dest.String(), Op: "close", Cause: cerr}
		}
	}()

	var b strings.Builder
	b.WriteString("Available cryptocurrencies:\n\n")
	for _, symbol := range symbols {
		fmt.Fprintf(&b, "- %s\n", symbol.ID)
	}

	if _, err := io.WriteString(out, b.String()); err != nil {
		return &apperrors.OutputWriteError{Destination: dest.String(), Op: "write", Cause: err}
	}
	return nil
}

// handleHistory fetches, sorts and writes the history of the requested symbols
func (cli *CLI) handleHistory(ctx context.Context, flags *HistoryFlags) error {
	start, end, err := resolveRange(flags, cli.config.Output.StartDate, cli.now())
	if err != nil {
		return err
	}

	output := flags.Output
	if output == "" {
		output = cli.config.Output.Destination
	}
	format := flags.Format
	if format == "" {
		format = cli.config.Output.Format
	}
	format = export.NormalizeFormat(format)
	if err := export.CheckTarget(format, export.Destination{Path: output}); err != nil {
		return apperrors.NewUsageError("%s output requires a file path, use --output <file>", format)
	}

	ctx, _ = logger.NewRunContext(ctx)
	ctx = logger.WithOperation(ctx, "history")
	log := logger.FromContext(ctx, cli.logger)

	log.Info("starting history run",
		"symbols", flags.Symbols,
		"start", start.Format(models.DateLayout),
		"end", end.Format(models.DateLayout),
		"output", output,
		"format", format)

	aggregator := history.NewAggregator(cli.source, cli.loggers.GetComponentLogger("history"), cli.metrics)
	pipeline := history.NewPipeline(aggregator, cli.stderr, cli.loggers.GetComponentLogger("history"))
	if format == export.FormatCSV {
		pipeline = pipeline.WithWriter(export.NewCSVWriter(cli.stdout))
	}

	began := cli.now()
	summary, err := pipeline.Run(ctx, history.HistoryRequest{
		Symbols:     flags.Symbols,
		Start:       start,
		End:         end,
		Destination: export.Destination{Path: output},
		Format:      format,
	})
	if err != nil {
		return err
	}

	cli.metrics.RecordRun(cli.now(), cli.now().Sub(began))
	if err := cli.metrics.Flush(); err != nil {
		log.Warn("failed to write metrics",
			"error", apperrors.WrapError(err, "metrics", "flush", "textfile export failed"))
	}

	log.Debug("history run finished",
		"succeeded", summary.Succeeded(),
		"failed", len(summary.Failures),
		"rows", summary.Rows,
		"written", summary.Written)

	return nil
}

// resolveRange applies the date defaults: the configured start and today's date
func resolveRange(flags *HistoryFlags, defaultStart string, now time.Time) (time.Time, time.Time, error) {
	startText := flags.Start
	if startText == "" {
		startText = defaultStart
	}

	start, err := time.Parse(models.DateLayout, startText)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewUsageError("invalid start date %q, use YYYY-MM-DD", startText)
	}

	var end time.Time
	if flags.End == "" {
		y, m, d := now.Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	} else {
		end, err = time.Parse(models.DateLayout, flags.End)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewUsageError("invalid end date %q, use YYYY-MM-DD", flags.End)
		}
	}

	return start, end, nil
}

// reportError prints the one-line top-level diagnostic
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "[ERROR] %s\n", apperrors.Describe(err))
}
