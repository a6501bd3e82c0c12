package shell_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tint/internal/adapters/shell"
	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/tint/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use POSIX shell commands")
	}
}

func newTestCompiler(t *testing.T) *shell.Compiler {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	return shell.NewCompiler(logger)
}

func TestCompiler_Compile(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.scss"), []byte("body { color: red }\n"), 0o600))

	cfg := &domain.Config{
		Root: root,
		// Stand-in compiler: copies source to output.
		Compiler: []string{"sh", "-c", `cat "$1" > "$2"`, "tint-test"},
	}

	compiler := newTestCompiler(t)
	err := compiler.Compile(t.Context(), cfg, domain.Entry{Source: "main.scss", Output: "dist/main.css"})
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(root, "dist", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "body { color: red }\n", string(out))
}

func TestCompiler_Compile_FailureCapturesOutput(t *testing.T) {
	skipOnWindows(t)

	cfg := &domain.Config{
		Root:     t.TempDir(),
		Compiler: []string{"sh", "-c", `echo "syntax error on line 3" >&2; exit 65`, "tint-test"},
	}

	compiler := newTestCompiler(t)
	err := compiler.Compile(t.Context(), cfg, domain.Entry{Source: "main.scss", Output: "main.css"})
	require.ErrorContains(t, err, domain.ErrCompileFailed.Error())

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	meta := zErr.Metadata()
	assert.Equal(t, "syntax error on line 3", meta["output"])
	assert.Equal(t, 65, meta["exit_code"])
}

func TestCompiler_Compile_MissingCommand(t *testing.T) {
	cfg := &domain.Config{Root: t.TempDir()}

	compiler := newTestCompiler(t)
	err := compiler.Compile(t.Context(), cfg, domain.Entry{Source: "a.scss", Output: "a.css"})
	require.ErrorContains(t, err, domain.ErrNoCompilerCommand.Error())
}

func TestCompiler_Compile_EnvOverride(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	cfg := &domain.Config{
		Root:     root,
		Compiler: []string{"sh", "-c", `printf '%s' "$TINT_TEST_VAR" > "$2"`, "tint-test"},
		Env:      map[string]string{"TINT_TEST_VAR": "hello"},
	}

	compiler := newTestCompiler(t)
	err := compiler.Compile(t.Context(), cfg, domain.Entry{Source: "a.scss", Output: "out.txt"})
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(root, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestCompiler_Compile_ContextCancellation(t *testing.T) {
	skipOnWindows(t)

	cfg := &domain.Config{
		Root:     t.TempDir(),
		Compiler: []string{"sh", "-c", "sleep 10", "tint-test"},
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	compiler := newTestCompiler(t)
	start := time.Now()
	err := compiler.Compile(ctx, cfg, domain.Entry{Source: "a.scss", Output: "a.css"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCompiler_Compile_StreamsDiagnostics(t *testing.T) {
	skipOnWindows(t)

	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Info("compiling main.scss")
	logger.EXPECT().Info("done")

	cfg := &domain.Config{
		Root:     t.TempDir(),
		Compiler: []string{"sh", "-c", `echo "compiling main.scss"; echo "done"; : > "$2"`, "tint-test"},
	}

	compiler := shell.NewCompiler(logger)
	err := compiler.Compile(t.Context(), cfg, domain.Entry{Source: "main.scss", Output: "main.css"})
	require.NoError(t, err)
}
