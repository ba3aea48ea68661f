package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options describes where and how log entries are written.
type Options struct {
	Level  string
	Format string
	Output string
	Pretty bool
}

// NewZerolog builds the zerolog sink described by opts.
// The sink is left at debug level; thresholds are applied by Logger.
func NewZerolog(opts Options) (zerolog.Logger, error) {
	output, outputFile, err := selectOutput(opts.Output)
	if err != nil {
		return zerolog.Logger{}, err
	}

	if shouldUsePretty(opts, outputFile) {
		output = buildConsoleWriter(output)
	}

	return zerolog.New(output).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger(), nil
}

// NewFromOptions builds the sink and wraps it in a Logger at the configured level.
func NewFromOptions(opts Options, extra ...Option) (*Logger, error) {
	sink, err := NewZerolog(opts)
	if err != nil {
		return nil, err
	}
	return New(sink, ParseLevel(opts.Level), extra...), nil
}

// ZerologLevel maps a Level onto the closest zerolog level, for the
// request-scoped loggers that share the sink.
func ZerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}

func selectOutput(outputCfg string) (io.Writer, *os.File, error) {
	switch outputCfg {
	case "", "stdout":
		return os.Stdout, os.Stdout, nil
	case "stderr":
		return os.Stderr, os.Stderr, nil
	default:
		outputCfg = filepath.Clean(outputCfg)
		f, err := os.OpenFile(outputCfg, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open output %s: %w", outputCfg, err)
		}
		return f, f, nil
	}
}

func shouldUsePretty(opts Options, outputFile *os.File) bool {
	if opts.Pretty {
		return true
	}

	switch opts.Format {
	case "pretty":
		return true
	case "json":
		return false
	default:
		// console or unset: pretty only on a terminal
		return outputFile != nil && isatty.IsTerminal(outputFile.Fd())
	}
}

func buildConsoleWriter(output io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:           output,
		TimeFormat:    "15:04:05",
		FormatLevel:   formatLevel,
		FormatMessage: formatMessage,
		FormatFieldName: func(i any) string {
			return fmt.Sprintf("\033[2m%s=\033[0m", i)
		},
		FormatFieldValue: func(i any) string {
			return fmt.Sprintf("%s", i)
		},
	}
}

var levelColors = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
	"fatal": "\033[35mFTL\033[0m",
	"panic": "\033[35mPNC\033[0m",
}

func formatLevel(i any) string {
	levelStr, ok := i.(string)
	if !ok {
		return ""
	}
	if colored, exists := levelColors[levelStr]; exists {
		return colored
	}
	return levelStr
}

func formatMessage(i any) string {
	if i == nil {
		return ""
	}
	return fmt.Sprintf("-> %s", i)
}
