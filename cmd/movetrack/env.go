package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"movetrack/internal/config"
	"movetrack/internal/errors"
	"movetrack/internal/paths"
	"movetrack/internal/slogutil"
	"movetrack/internal/storage"
)

// env is what every command needs: resolved root, configuration, logger.
type env struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	closers []io.Closer
}

func loadEnv(root string) (*env, error) {
	resolved, err := paths.ResolveRoot(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		return nil, errors.NewCodedError(errors.ConfigInvalid, "failed to load configuration", err,
			errors.GetSuggestedFixes(errors.ConfigInvalid), nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slogutil.LevelFromVerbosity(verbosity, quiet, slogutil.LevelFromString(cfg.Logging.Level))
	logger, closer, err := newLogger(resolved, cfg.Logging, os.Stderr, level)
	if err != nil {
		return nil, err
	}

	e := &env{root: resolved, cfg: cfg, logger: logger}
	if closer != nil {
		e.closers = append(e.closers, closer)
	}
	return e, nil
}

// newLogger writes to console in the configured format and, when logging.file
// is set, tees every record to that file as JSON. The closer is nil without a file.
func newLogger(root string, cfg config.LoggingConfig, console io.Writer, level slog.Level) (*slog.Logger, io.Closer, error) {
	consoleHandler := slogutil.NewFormatHandler(console, cfg.Format, level)
	if cfg.File == "" {
		return slog.New(consoleHandler), nil, nil
	}

	path := paths.Resolve(root, cfg.File)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	fileHandler, f, err := slogutil.NewFileHandler(path, level)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(slogutil.NewTeeHandler(consoleHandler, fileHandler)), f, nil
}

// Close releases the log files opened by loadEnv.
func (e *env) Close() error {
	var firstErr error
	for _, c := range e.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.closers = nil
	return firstErr
}

func (e *env) openDB() (*storage.DB, error) {
	return storage.Open(paths.Resolve(e.root, e.cfg.Snapshot.DatabasePath), e.logger)
}

// fail prints err with its suggested fixes and exits 1.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var codedErr *errors.CodedError
	if stderrors.As(err, &codedErr) && len(codedErr.SuggestedFixes) > 0 {
		fmt.Fprintln(os.Stderr, "\nSuggested fixes:")
		for _, fix := range codedErr.SuggestedFixes {
			line := fix.Description
			if fix.Command != "" {
				line += ": " + fix.Command
			}
			fmt.Fprintf(os.Stderr, "  - %s\n", line)
		}
	}
	os.Exit(1)
}
