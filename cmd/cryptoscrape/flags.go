package main

import (
	"fmt"
	"io"
	"strings"

	apperrors "github.com/johnayoung/go-crypto-scraper/internal/errors"
	"github.com/johnayoung/go-crypto-scraper/internal/export"
)

// CoinsFlags represents flags for the coins command
type CoinsFlags struct {
	Output string
	Help   bool
}

// HistoryFlags represents flags for the history command
type HistoryFlags struct {
	Symbols []string
	Start   string
	End     string
	Output  string
	Format  string
	Help    bool
}

// splitFlag separates "--name=value" into its name and value
func splitFlag(arg string) (name, value string, hasValue bool) {
	if strings.HasPrefix(arg, "--") {
		if idx := strings.Index(arg, "="); idx > 0 {
			return arg[:idx], arg[idx+1:], true
		}
	}
	return arg, "", false
}

// flagValue returns the value of the flag at args[i], either inline or from the next
// argument, and the index of the last argument consumed
func flagValue(args []string, i int) (string, int, error) {
	name, value, hasValue := splitFlag(args[i])
	if hasValue {
		return value, i, nil
	}
	if i+1 >= len(args) {
		return "", i, apperrors.NewUsageError("%s requires a value", name)
	}
	return args[i+1], i + 1, nil
}

// parseCoinsFlags parses command line arguments for the coins command
func parseCoinsFlags(args []string) (*CoinsFlags, error) {
	flags := &CoinsFlags{}

	for i := 0; i < len(args); i++ {
		name, _, _ := splitFlag(args[i])
		switch name {
		case "--output", "-o":
			value, next, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			flags.Output = value
			i = next
		case "--help", "-h":
			flags.Help = true
		default:
			return nil, apperrors.NewUsageError("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// parseHistoryFlags parses command line arguments for the history command.
// Arguments that are not flags are symbols, kept in the order given.
func parseHistoryFlags(args []string) (*HistoryFlags, error) {
	flags := &HistoryFlags{}

	for i := 0; i < len(args); i++ {
		name, _, _ := splitFlag(args[i])

		var target *string
		switch name {
		case "--start", "--start_at", "-s":
			target = &flags.Start
		case "--end", "--end_at", "-e":
			target = &flags.End
		case "--output", "-o":
			target = &flags.Output
		case "--format", "-f":
			target = &flags.Format
		case "--help", "-h":
			flags.Help = true
			continue
		default:
			if strings.HasPrefix(args[i], "-") && args[i] != "-" {
				return nil, apperrors.NewUsageError("unknown flag: %s", args[i])
			}
			flags.Symbols = append(flags.Symbols, args[i])
			continue
		}

		value, next, err := flagValue(args, i)
		if err != nil {
			return nil, err
		}
		*target = value
		i = next
	}

	if flags.Help {
		return flags, nil
	}

	if len(flags.Symbols) == 0 {
		return nil, apperrors.NewUsageError("at least one symbol is required")
	}

	if flags.Format != "" {
		if !export.IsSupportedFormat(flags.Format) {
			return nil, apperrors.NewUsageError("invalid format %q, must be one of: %s",
				flags.Format, strings.Join(export.Formats, ", "))
		}
		flags.Format = export.NormalizeFormat(flags.Format)
	}

	return flags, nil
}

// Help and usage functions

// printUsage prints the main usage information
func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s - Cryptocurrency history scraper v%s

USAGE:
    %s <command> [options]

COMMANDS:
    coins       List the available cryptocurrencies
    history     Download daily history for one or more cryptocurrencies

GLOBAL OPTIONS:
    --help, -h     Show help information
    --version, -v  Show version information

EXAMPLES:
    # List every cryptocurrency the source knows about
    %s coins

    # Full history of bitcoin and litecoin as CSV on standard output
    %s history bitcoin litecoin

    # One year of ethereum history into a file
    %s history ethereum --start 2017-01-01 --end 2017-12-31 --output data/ethereum.csv

CONFIGURATION:
    Configuration can be provided via:
    - Config file: %s (JSON, or YAML when the path ends in .yaml/.yml),
      path overridable with %s
    - A .env file in the working directory
    - Environment variables: CRYPTOSCRAPE_* (e.g., CRYPTOSCRAPE_LOG_LEVEL=debug)

    Example config file:
    {
        "source": {"timeout": "30s"},
        "output": {"format": "csv"},
        "logging": {"level": "info"}
    }

For detailed help on any command, use: %s <command> --help
`, AppName, Version, AppName, AppName, AppName, AppName, ConfigFile, ConfigEnv, AppName)
}

// printCommandHelp prints detailed help for a specific command
func printCommandHelp(w io.Writer, command string) {
	switch command {
	case "coins":
		fmt.Fprintf(w, `%s coins - List the available cryptocurrencies

USAGE:
    %s coins [options]

OPTIONS:
    --output, -o <target>     "stdout" or a file path (default: stdout)
    --help, -h                Show this help message

EXAMPLES:
    %s coins
    %s coins --output coins.txt
`, AppName, AppName, AppName, AppName)

	case "history":
		fmt.Fprintf(w, `%s history - Download daily history for one or more cryptocurrencies

USAGE:
    %s history <symbol>... [options]

OPTIONS:
    --start, --start_at, -s <date>   Start date, YYYY-MM-DD (default: 2013-04-28)
    --end, --end_at, -e <date>       End date, YYYY-MM-DD (default: today)
    --output, -o <target>            "stdout" or a file path (default: stdout)
    --format, -f <format>            csv, xlsx or duckdb (default: csv)
                                     xlsx and duckdb require a file path
    --help, -h                       Show this help message

EXAMPLES:
    %s history bitcoin litecoin
    %s history bitcoin --start 2017-01-01 --end 2017-01-31 --output jan.csv
    %s history bitcoin ethereum --format duckdb --output history.duckdb

NOTES:
    - Symbols that fail to download or parse are reported and skipped
    - Rows are sorted by date, then symbol
`, AppName, AppName, AppName, AppName, AppName)

	default:
		fmt.Fprintf(w, "Unknown command: %s\n\n", command)
		printUsage(w)
	}
}
