// =============================================================================
// posledger - Logging Setup
// =============================================================================
//
// Builds the logrus logger shared by every component.
//
// OUTPUTS:
//   - Console (stderr): text, at the configured level (warn by default,
//     info with --verbose)
//   - Log file (optional): JSON, every entry down to debug
//
// Both outputs are hooks on one logger, so each keeps its own level.
//
// =============================================================================

package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures the logger.
type Options struct {
	// Level is the console level name. Empty means "warn".
	Level string

	// Verbose raises the console level to at least info.
	Verbose bool

	// File receives every entry at debug level. Empty disables it.
	File string

	// Console overrides stderr (tests).
	Console io.Writer
}

// Logger wraps the logrus logger and the resources it holds.
type Logger struct {
	*logrus.Logger
	file *os.File
}

// New creates the logger.
func New(opts Options) (*Logger, error) {
	level := logrus.WarnLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose && level < logrus.InfoLevel {
		level = logrus.InfoLevel
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(level)
	log.AddHook(&writerHook{
		writer:    console,
		formatter: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true},
		levels:    levelsUpTo(level),
	})

	out := &Logger{Logger: log}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out.file = f
		log.SetLevel(logrus.DebugLevel)
		log.AddHook(&writerHook{
			writer:    f,
			formatter: &logrus.JSONFormatter{},
			levels:    levelsUpTo(logrus.DebugLevel),
		})
	}
	return out, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// writerHook writes the entries of its levels to a writer.
type writerHook struct {
	writer    io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *writerHook) Levels() []logrus.Level {
	return h.levels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}

func levelsUpTo(max logrus.Level) []logrus.Level {
	var out []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= max {
			out = append(out, l)
		}
	}
	return out
}
