// Package shell provides a compiler adapter that shells out to an external
// CSS compiler.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/tint/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Compiler = (*Compiler)(nil)

// Compiler runs the configured compiler command for one entry at a time.
type Compiler struct {
	logger ports.Logger
}

// NewCompiler creates a new Compiler with the given logger.
func NewCompiler(logger ports.Logger) *Compiler {
	return &Compiler{logger: logger}
}

// Compile invokes cfg.Compiler with the entry's source and output paths
// appended, running in cfg.Root. Compiler diagnostics stream through the
// logger; on failure the captured output is attached to the error.
func (c *Compiler) Compile(ctx context.Context, cfg *domain.Config, entry domain.Entry) error {
	if len(cfg.Compiler) == 0 {
		return domain.ErrNoCompilerCommand
	}

	if err := ensureOutputDir(cfg.Root, entry.Output); err != nil {
		return err
	}

	argv := make([]string, 0, len(cfg.Compiler)+2)
	argv = append(argv, cfg.Compiler...)
	argv = append(argv, entry.Source, entry.Output)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // user provided command
	cmd.Dir = cfg.Root
	cmd.Env = buildEnv(os.Environ(), cfg.Env)

	var captured bytes.Buffer
	sink := &lineWriter{logger: c.logger, capture: &captured}
	cmd.Stdout = sink
	cmd.Stderr = sink

	err := cmd.Run()
	sink.flush()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		wrapped := zerr.Wrap(err, domain.ErrCompileFailed.Error())
		wrapped = zerr.With(wrapped, "source", entry.Source)
		wrapped = zerr.With(wrapped, "exit_code", exitCode)
		if out := strings.TrimSpace(captured.String()); out != "" {
			wrapped = zerr.With(wrapped, "output", out)
		}
		return wrapped
	}

	return nil
}

func ensureOutputDir(root, output string) error {
	dir := filepath.Dir(output)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create output directory")
	}
	return nil
}

// buildEnv layers the configured variables over the current environment.
func buildEnv(sysEnv []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return sysEnv
	}

	envMap := make(map[string]string, len(sysEnv)+len(extra))
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range extra {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

// lineWriter forwards complete output lines to the logger while keeping a
// copy for error reporting.
type lineWriter struct {
	logger  ports.Logger
	capture *bytes.Buffer
	buf     []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.capture.Write(p)
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")
	if msg == "" {
		return
	}
	w.logger.Info(msg)
}
